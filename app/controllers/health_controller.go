package controllers

import (
	"net/http"

	"github.com/aihub/knowledge-go/internal/di"
	"github.com/aihub/knowledge-go/internal/scheduler"
)

// RootController 服务信息
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]interface{}{
		"service": "knowledge-go",
		"status":  "running",
	})
}

// HealthController 健康检查接口，聚合各后端探针结果
type HealthController struct {
	BaseController
	monitor *scheduler.HealthMonitor
}

func (c *HealthController) Prepare() {
	if c.monitor == nil {
		_ = di.Invoke(func(m *scheduler.HealthMonitor) {
			c.monitor = m
		})
	}
}

// GET /health
func (c *HealthController) Health() {
	if c.monitor == nil {
		c.JSONError(http.StatusServiceUnavailable, "健康检查未初始化")
		return
	}

	components, healthy := c.monitor.Status()
	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, map[string]interface{}{
		"status":     overall,
		"components": components,
	})
}
