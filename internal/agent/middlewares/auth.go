package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openmined/livesync/internal/agent/api"
	"github.com/openmined/livesync/internal/authtoken"
)

const (
	bearerPrefix      = "Bearer "
	authHeader        = "Authorization"
	subjectContextKey = "subject"
)

// TokenAuth requires a bearer token issued for the agent's secret. A nil
// verifier turns the check off.
func TokenAuth(verifier *authtoken.Verifier) gin.HandlerFunc {
	if verifier == nil {
		slog.Info("agent auth disabled")
		return func(ctx *gin.Context) {
			ctx.Next()
		}
	}

	slog.Info("agent auth enabled")
	return func(ctx *gin.Context) {
		value := ctx.GetHeader(authHeader)
		if !strings.HasPrefix(value, bearerPrefix) {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, errors.New("authorization header must be Bearer {token}"))
			return
		}

		claims, err := verifier.Verify(strings.TrimPrefix(value, bearerPrefix))
		if err != nil {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, err)
			return
		}

		ctx.Set(subjectContextKey, claims.Subject)
		ctx.Next()
	}
}

// Subject returns who the request's token was issued to
func Subject(ctx *gin.Context) string {
	return ctx.GetString(subjectContextKey)
}
