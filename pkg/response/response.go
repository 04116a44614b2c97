package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Detail    string            `json:"detail"`
	RequestID string            `json:"request_id,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Success writes data as the response body. Resources are returned bare,
// without an envelope.
func Success[T any](ctx *gin.Context, status int, data T) {
	if status == 0 {
		status = http.StatusOK
	}
	ctx.JSON(status, data)
}

// Error writes an ErrorBody and aborts the handler chain.
func Error(ctx *gin.Context, status int, detail string, errs map[string]string) {
	if status == 0 {
		status = http.StatusBadRequest
	}
	ctx.AbortWithStatusJSON(status, ErrorBody{
		Detail:    detail,
		RequestID: ctx.GetString("request_id"),
		Errors:    errs,
	})
}
