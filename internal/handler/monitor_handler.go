package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"threadhub/internal/hub"
)

type MonitorHandler interface {
	GetHubStats(c *gin.Context)
}

type monitorHandler struct {
	monitor *hub.MonitorService
}

func NewMonitorHandler(monitor *hub.MonitorService) MonitorHandler {
	return &monitorHandler{monitor: monitor}
}

// GetHubStats reports live connection, channel and typing statistics
func (h *monitorHandler) GetHubStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.GetStats())
}
