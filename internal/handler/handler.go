package handler

import (
	"context"
	"net/http"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type SignalReader interface {
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error)
}

type PerformanceReader interface {
	ListRecords(ctx context.Context, filter domain.PerformanceFilter) ([]domain.PerformanceRecord, error)
	Stats(ctx context.Context) ([]domain.StrategyStats, error)
}

type Handler struct {
	tracer      trace.Tracer
	signals     SignalReader
	performance PerformanceReader
}

func New(tracer trace.Tracer, signals SignalReader, performance PerformanceReader) *Handler {
	return &Handler{
		tracer:      tracer,
		signals:     signals,
		performance: performance,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	api := r.Group("/api")
	{
		api.GET("/signals", h.GetSignals)
		api.GET("/performance", h.GetPerformance)
		api.GET("/stats", h.GetStats)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
