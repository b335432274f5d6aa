package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"btcoracle/internal/cache"
	"btcoracle/internal/errs"
	"btcoracle/internal/market/aggregate"
	"btcoracle/internal/oracle"
)

// PriceReader supplies the latest aggregated price record.
type PriceReader interface {
	Latest(ctx context.Context) (*aggregate.Record, error)
}

// VolatilityReader answers duration-based volatility lookups.
type VolatilityReader interface {
	ForDuration(ctx context.Context, duration time.Duration) (float64, error)
}

// Handlers serves the read endpoints from cache and stores.
type Handlers struct {
	prices     PriceReader
	volatility VolatilityReader
	ledger     oracle.Ledger
	cache      cache.Cacher
	log        *logrus.Logger
}

// NewHandlers creates the read handlers.
func NewHandlers(prices PriceReader, volatility VolatilityReader, ledger oracle.Ledger, cacher cache.Cacher, log *logrus.Logger) *Handlers {
	return &Handlers{
		prices:     prices,
		volatility: volatility,
		ledger:     ledger,
		cache:      cacher,
		log:        log,
	}
}

// GetLatestPrice returns the latest aggregated price record, cache
// first.
func (h *Handlers) GetLatestPrice(c *gin.Context) {
	ctx := c.Request.Context()

	if h.cache != nil {
		var rec aggregate.Record
		if err := h.cache.GetLatestPrice(ctx, &rec); err == nil {
			c.JSON(http.StatusOK, rec)
			return
		}
	}

	rec, err := h.prices.Latest(ctx)
	if err != nil {
		if errs.IsNoData(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no aggregated price available yet"})
			return
		}
		h.log.WithField("error", err.Error()).Error("failed to read latest price")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Get24hRange returns the 24h high/low/range of the latest record.
func (h *Handlers) Get24hRange(c *gin.Context) {
	ctx := c.Request.Context()

	if h.cache != nil {
		var r aggregate.Range
		if err := h.cache.Get24hRange(ctx, &r); err == nil {
			c.JSON(http.StatusOK, r)
			return
		}
	}

	rec, err := h.prices.Latest(ctx)
	if err != nil || rec.Range24h == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no 24h range available"})
		return
	}
	c.JSON(http.StatusOK, rec.Range24h)
}

// GetVolatilityForDuration returns the nearest-timeframe volatility for
// ?duration=<seconds>.
func (h *Handlers) GetVolatilityForDuration(c *gin.Context) {
	seconds, err := strconv.ParseInt(c.Query("duration"), 10, 64)
	if err != nil || seconds <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be a positive number of seconds"})
		return
	}

	vol, err := h.volatility.ForDuration(c.Request.Context(), time.Duration(seconds)*time.Second)
	if err != nil {
		if errs.IsNoData(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no volatility data available"})
			return
		}
		h.log.WithField("error", err.Error()).Error("volatility lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"durationSeconds": seconds, "volatility": vol})
}

// GetRecentSubmissions lists the latest ledger entries, newest first.
func (h *Handlers) GetRecentSubmissions(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	records, err := h.ledger.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.WithField("error", err.Error()).Error("failed to read submission ledger")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if records == nil {
		records = []*oracle.SubmissionRecord{}
	}
	c.JSON(http.StatusOK, records)
}
