package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/finflow-api/internal/interface/http"
	"github.com/oksasatya/finflow-api/internal/interface/middleware"
)

type HealthModule struct {
	Handler *handlers.HealthHandler
}

func NewHealthModule(h *handlers.HealthHandler) *HealthModule { return &HealthModule{Handler: h} }

func (m *HealthModule) Register(rg *gin.RouterGroup) {
	rg.GET("/health", m.Handler.Health)
	rg.GET("/health/ready", m.Handler.Ready)
}

// MetricsModule exposes Prometheus metrics at /metrics.
type MetricsModule struct {
	Metrics *middleware.Metrics
}

func NewMetricsModule(m *middleware.Metrics) *MetricsModule { return &MetricsModule{Metrics: m} }

func (m *MetricsModule) Register(rg *gin.RouterGroup) {
	rg.GET("/metrics", m.Metrics.Handler())
}
