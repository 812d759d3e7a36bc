package agent

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/openmined/livesync/internal/agent/api"
	"github.com/openmined/livesync/internal/version"
)

// DeviceInfo describes the host the agent runs on
type DeviceInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platformVersion"`
	KernelArch      string `json:"kernelArch"`
	Uptime          uint64 `json:"uptime"`
	MemoryTotal     uint64 `json:"memoryTotal"`
	MemoryUsed      uint64 `json:"memoryUsed"`
	Agent           string `json:"agent"`
	Sessions        int    `json:"sessions"`
}

func (h *handlers) DeviceInfo(ctx *gin.Context) {
	info, err := host.InfoWithContext(ctx.Request.Context())
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	resp := DeviceInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelArch:      info.KernelArch,
		Uptime:          info.Uptime,
		Agent:           version.Short(),
		Sessions:        h.hub.Count(),
	}

	// memory stats are best effort, some sandboxes hide them
	if vm, err := mem.VirtualMemoryWithContext(ctx.Request.Context()); err == nil {
		resp.MemoryTotal = vm.Total
		resp.MemoryUsed = vm.Used
	} else {
		slog.Debug("device memory stats unavailable", "error", err)
	}

	ctx.PureJSON(http.StatusOK, resp)
}
