package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/http/response"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
	"github.com/yungbote/itvault-backend/internal/services"
)

type SearchHandler struct {
	log    *logger.Logger
	search services.SearchService
}

func NewSearchHandler(log *logger.Logger, search services.SearchService) *SearchHandler {
	return &SearchHandler{log: log.With("handler", "SearchHandler"), search: search}
}

type searchBody struct {
	Query          string `json:"query"`
	OrganizationID string `json:"organizationId"`
	Limit          int    `json:"limit"`
}

// POST /api/search
func (h *SearchHandler) Search(c *gin.Context) {
	var body searchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.run(c, body)
}

// GET /api/search?q=&organizationId=&limit=
func (h *SearchHandler) SearchQuery(c *gin.Context) {
	body := searchBody{Query: c.Query("q"), OrganizationID: c.Query("organizationId")}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		body.Limit = n
	}
	h.run(c, body)
}

func (h *SearchHandler) run(c *gin.Context, body searchBody) {
	req := services.SearchRequest{Query: body.Query, Limit: body.Limit}
	if raw := strings.TrimSpace(body.OrganizationID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_organization_id", errors.New("organizationId must be a uuid"))
			return
		}
		req.OrganizationID = &id
	}
	ctx := c.Request.Context()
	res, err := h.search.Search(ctx, services.ScopeFromContext(ctx), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/search/status
func (h *SearchHandler) Status(c *gin.Context) {
	st, err := h.search.Status(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, st)
}
