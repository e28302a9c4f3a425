package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"venue":      s.Meta.Venue,
		"dry_run":    s.Meta.DryRun,
		"symbols":    s.Meta.Symbols,
		"strategies": s.Meta.Strategies,
		"version":    s.Meta.Version,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics not enabled"})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) getPositions(c *gin.Context) {
	positions, err := s.Store.GetOpenPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

func (s *Server) getDecisions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	decisions, err := s.Store.RecentDecisions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions, "count": len(decisions)})
}

func (s *Server) getStrategies(c *gin.Context) {
	instances, err := s.Store.ListStrategyInstances(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategies": instances, "count": len(instances)})
}

func (s *Server) getDcaOrders(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	orders, err := s.Store.ListDcaOrders(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (s *Server) getPrices(c *gin.Context) {
	if s.Watcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market watcher not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": s.Watcher.Snapshot()})
}

func (s *Server) getRisk(c *gin.Context) {
	cfg := s.RiskMgr.Config()
	metrics, err := s.Store.GetRiskMetrics(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	open, err := s.Store.CountOpenPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"config": gin.H{
			"min_confidence":     cfg.MinConfidence,
			"max_open_positions": cfg.MaxOpenPositions,
			"risk_per_trade_pct": cfg.RiskPerTradePct,
			"leverage":           cfg.Leverage,
		},
		"open_positions": open,
		"today":          metrics,
	})
}
