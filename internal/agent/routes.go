package agent

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"

	"github.com/openmined/livesync/internal/agent/middlewares"
	"github.com/openmined/livesync/internal/authtoken"
	"github.com/openmined/livesync/internal/version"
)

type routeConfig struct {
	verifier  *authtoken.Verifier
	rateLimit string
}

func setupRoutes(h *handlers, hub *sessionHub, m *metrics, cfg *routeConfig) (http.Handler, error) {
	r := gin.New()

	httpLogger := slog.Default().WithGroup("http")
	r.Use(slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelDebug,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	}))
	r.Use(gin.Recovery())
	r.Use(middlewares.SecureHeaders())
	r.Use(middlewares.CORS())
	r.Use(middlewares.GZIP())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)
	r.GET("/metrics", gin.WrapH(m.handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.TokenAuth(cfg.verifier))
	if cfg.rateLimit != "-" {
		limit, err := middlewares.RateLimiter(cfg.rateLimit)
		if err != nil {
			return nil, err
		}
		v1.Use(limit)
	}
	{
		// device
		v1.GET("/device", h.DeviceInfo)

		// device file system
		v1.GET("/fs", h.GetFile)
		v1.PUT("/fs", h.PutFile)
		v1.DELETE("/fs", h.DeleteFile)

		// applications
		v1.GET("/apps/:id", h.GetApp)
		v1.POST("/apps/:id/start", h.StartApp)
		v1.POST("/apps/:id/restart", h.RestartApp)

		// livesync sessions
		v1.GET("/livesync", hub.WebsocketHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.Detailed())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
