package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/openmined/livesync/internal/agent/api"
)

type handlers struct {
	store   *Store
	apps    *AppRegistry
	metrics *metrics
	hub     *sessionHub
}

func devicePathParam(ctx *gin.Context) (string, bool) {
	p := ctx.Query("path")
	if p == "" || !strings.HasPrefix(p, "/") {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("absolute path is required"))
		return "", false
	}
	return p, true
}

func (h *handlers) GetFile(ctx *gin.Context) {
	devicePath, ok := devicePathParam(ctx)
	if !ok {
		return
	}

	data, err := h.store.Read(devicePath)
	if errors.Is(err, fs.ErrNotExist) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeFileNotFound, fmt.Errorf("%s not found", devicePath))
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.Data(http.StatusOK, "application/octet-stream", data)
}

func (h *handlers) PutFile(ctx *gin.Context) {
	devicePath, ok := devicePathParam(ctx)
	if !ok {
		return
	}

	n, err := h.store.Write(devicePath, ctx.Request.Body)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	slog.Debug("file put", "path", devicePath, "size", humanize.Bytes(uint64(n)))
	ctx.PureJSON(http.StatusOK, gin.H{"path": devicePath, "size": n})
}

func (h *handlers) DeleteFile(ctx *gin.Context) {
	devicePath, ok := devicePathParam(ctx)
	if !ok {
		return
	}

	err := h.store.Delete(devicePath)
	if errors.Is(err, fs.ErrNotExist) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeFileNotFound, fmt.Errorf("%s not found", devicePath))
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *handlers) StartApp(ctx *gin.Context) {
	state := h.apps.Start(ctx.Param("id"))
	ctx.PureJSON(http.StatusOK, state)
}

func (h *handlers) RestartApp(ctx *gin.Context) {
	state := h.apps.Restart(ctx.Param("id"))
	slog.Info("app restarted", "appId", state.AppID, "restarts", state.Restarts)
	ctx.PureJSON(http.StatusOK, state)
}

func (h *handlers) GetApp(ctx *gin.Context) {
	state, ok := h.apps.Get(ctx.Param("id"))
	if !ok {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeAppNotFound, fmt.Errorf("app %s not found", ctx.Param("id")))
		return
	}
	ctx.PureJSON(http.StatusOK, state)
}
