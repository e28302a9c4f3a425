package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bitget-trader/internal/events"
	"bitget-trader/internal/market"
	"bitget-trader/internal/monitor"
	"bitget-trader/internal/risk"
	"bitget-trader/pkg/db"
)

// Server wires HTTP endpoints around the trader's components.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	Store     *db.Store
	RiskMgr   *risk.Manager
	Watcher   *market.Watcher
	Metrics   *monitor.SystemMetrics
	JWTSecret string
	Password  string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	DryRun     bool
	Venue      string
	Symbols    []string
	Strategies []string
	Version    string
}

func NewServer(bus *events.Bus, store *db.Store, riskMgr *risk.Manager, watcher *market.Watcher,
	metrics *monitor.SystemMetrics, meta SystemMeta, jwtSecret, password string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		Store:     store,
		RiskMgr:   riskMgr,
		Watcher:   watcher,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		Password:  password,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)

		api.POST("/auth/login", s.login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/positions", s.getPositions)
			protected.GET("/decisions", s.getDecisions)
			protected.GET("/strategies", s.getStrategies)
			protected.GET("/dca", s.getDcaOrders)
			protected.GET("/prices", s.getPrices)
			protected.GET("/risk", s.getRisk)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
