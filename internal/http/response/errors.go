package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/itvault-backend/internal/platform/apierr"
)

// RespondAPIError replies with the status and code carried by err's apierr.Error.
// Anything else is a 500 whose message is not echoed to the client.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.As(err)
	if ae.Status >= http.StatusInternalServerError && ae.Code == "internal_error" {
		RespondInternal(c, ae.Code, err)
		return
	}
	RespondError(c, ae.Status, ae.Code, err)
}

// RespondInternal replies 500 under code. err is attached to the gin context
// for the request log and never written to the body.
func RespondInternal(c *gin.Context, code string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusInternalServerError, envelope(c, code, "internal error"))
}

// RespondAborted stops the handler chain, for middleware rejections.
func RespondAborted(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, envelope(c, code, message))
}
