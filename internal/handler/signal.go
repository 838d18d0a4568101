package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetSignals returns recent signals, optionally filtered by symbol, type
// and minimum confidence.
func (h *Handler) GetSignals(c *gin.Context) {
	if h.signals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signals")
	defer span.End()

	filter := domain.SignalFilter{
		Symbol: strings.ToUpper(strings.TrimSpace(c.Query("symbol"))),
	}
	if filter.Symbol != "" {
		span.SetAttributes(attribute.String("symbol", filter.Symbol))
	}

	if rawType := strings.ToLower(strings.TrimSpace(c.Query("type"))); rawType != "" {
		t := domain.SignalType(rawType)
		if !t.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown signal type: " + rawType})
			return
		}
		filter.Type = t
	}

	if rawConf := strings.TrimSpace(c.Query("min_confidence")); rawConf != "" {
		n, err := strconv.Atoi(rawConf)
		if err != nil || n < 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_confidence must be an integer between 0 and 100"})
			return
		}
		filter.MinConf = n
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

	signals, err := h.signals.ListSignals(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signals": signals})
}
