package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"github.com/gin-gonic/gin"
)

// GetPerformance returns tracked signal outcomes, open ones included.
func (h *Handler) GetPerformance(c *gin.Context) {
	if h.performance == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "performance service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-performance")
	defer span.End()

	filter := domain.PerformanceFilter{
		Symbol:   strings.ToUpper(strings.TrimSpace(c.Query("symbol"))),
		Strategy: strings.ToLower(strings.TrimSpace(c.Query("strategy"))),
		OpenOnly: strings.EqualFold(strings.TrimSpace(c.Query("open")), "true"),
	}

	limit := 50
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n <= 0 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}
	filter.Limit = limit

	records, err := h.performance.ListRecords(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

// GetStats returns per-strategy aggregate outcomes.
func (h *Handler) GetStats(c *gin.Context) {
	if h.performance == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "performance service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-stats")
	defer span.End()

	stats, err := h.performance.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
