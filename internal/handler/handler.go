package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves process-level endpoints that belong to no domain package.
type Handler struct {
	gatherer prometheus.Gatherer
}

// NewHandler exposes the metrics collected by gatherer.
func NewHandler(gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{gatherer: gatherer}
}

func (h *Handler) MetricsHandler() gin.HandlerFunc {
	metrics := promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})
	return gin.WrapH(metrics)
}
