package controllers

import (
	"net/http"

	"github.com/aihub/knowledge-go/internal/di"
	"github.com/aihub/knowledge-go/internal/services"
)

// MetricsController Prometheus指标暴露
type MetricsController struct {
	BaseController
	metrics *services.MetricsService
}

func (c *MetricsController) Prepare() {
	if c.metrics == nil {
		_ = di.Invoke(func(m *services.MetricsService) {
			c.metrics = m
		})
	}
}

// GET /metrics
func (c *MetricsController) Metrics() {
	if c.metrics == nil {
		c.JSONError(http.StatusServiceUnavailable, "指标服务未初始化")
		return
	}
	c.metrics.Handler().ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
	// 响应已直接写出，跳过Beego的渲染
	c.EnableRender = false
}
