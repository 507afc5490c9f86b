package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/http/response"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
	"github.com/yungbote/itvault-backend/internal/services"
)

// AdminHandler serves the platform-admin search maintenance endpoints.
type AdminHandler struct {
	log      *logger.Logger
	settings services.SettingsService
	reindex  services.ReindexService
}

func NewAdminHandler(log *logger.Logger, settings services.SettingsService, reindex services.ReindexService) *AdminHandler {
	return &AdminHandler{log: log.With("handler", "AdminHandler"), settings: settings, reindex: reindex}
}

type reindexBody struct {
	Types  []string `json:"types"`
	Force  bool     `json:"force"`
	Inline bool     `json:"inline"`
}

// POST /api/search/reindex
func (h *AdminHandler) Reindex(c *gin.Context) {
	var body reindexBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	opts := services.ReindexOptions{Force: body.Force, Inline: body.Inline}
	for _, raw := range body.Types {
		t, err := search.ParseEntityType(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_entity_type", err)
			return
		}
		opts.Types = append(opts.Types, t)
	}
	rep, err := h.reindex.Reindex(c.Request.Context(), opts)
	if err != nil {
		h.log.Error("reindex failed", "error", err)
		response.RespondInternal(c, "reindex_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, rep)
}

type settingsBody struct {
	IndexingEnabled *bool   `json:"indexingEnabled"`
	EmbeddingsModel *string `json:"embeddingsModel"`
	EmbeddingsKey   *string `json:"embeddingsApiKey"`
}

// PUT /api/search/settings
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var body settingsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	if body.IndexingEnabled != nil {
		if err := h.settings.SetIndexingEnabled(ctx, *body.IndexingEnabled); err != nil {
			response.RespondInternal(c, "settings_update_failed", err)
			return
		}
	}
	if body.EmbeddingsModel != nil {
		if err := h.settings.SetEmbeddingsModel(ctx, *body.EmbeddingsModel); err != nil {
			response.RespondInternal(c, "settings_update_failed", err)
			return
		}
	}
	if body.EmbeddingsKey != nil {
		if err := h.settings.SetEmbeddingsAPIKey(ctx, *body.EmbeddingsKey); err != nil {
			if errors.Is(err, services.ErrSealerUnavailable) {
				response.RespondError(c, http.StatusConflict, "settings_update_failed", err)
				return
			}
			response.RespondInternal(c, "settings_update_failed", err)
			return
		}
	}
	cfg, err := h.settings.GetEmbeddingsConfig(ctx)
	if err != nil {
		response.RespondInternal(c, "settings_read_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"indexingEnabled": h.settings.IsIndexingEnabled(ctx),
		"embeddingsModel": cfg.Model,
		"configured":      cfg.Configured(),
		"source":          cfg.Source,
	})
}
