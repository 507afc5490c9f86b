package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/itvault-backend/internal/platform/ctxutil"
)

// ErrorBody is the client-visible part of a failure.
type ErrorBody struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrorEnvelope is always {"error":{...}} so clients can branch on one key.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func envelope(c *gin.Context, code, message string) ErrorEnvelope {
	body := ErrorBody{Message: message, Code: code}
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
		body.RequestID = td.RequestID
	}
	return ErrorEnvelope{Error: body}
}

// RespondError writes err's text under code. A nil err reads "unknown error".
func RespondError(c *gin.Context, status int, code string, err error) {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}
	c.JSON(status, envelope(c, code, message))
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
