package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

const (
	CodeInvalidRequest = "E_INVALID_REQUEST"
	CodeInternalError  = "E_INTERNAL_ERROR"
	CodeRateLimited    = "E_RATE_LIMITED"
	CodeUnauthorized   = "E_UNAUTHORIZED"
	CodeFileNotFound   = "E_FILE_NOT_FOUND"
	CodeAppNotFound    = "E_APP_NOT_FOUND"
)

// APIError is the JSON body of every failed request
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agent api error: code=%s, message=%s", e.Code, e.Message)
}

func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, APIError{
		Code:    code,
		Message: err.Error(),
	})
}
