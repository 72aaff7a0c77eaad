package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/SCPrime/ai-Trader-sub001/config"
	"github.com/SCPrime/ai-Trader-sub001/internal/auth"
	"github.com/SCPrime/ai-Trader-sub001/internal/database"
	"github.com/SCPrime/ai-Trader-sub001/internal/events"
	"github.com/SCPrime/ai-Trader-sub001/internal/executor"
	"github.com/SCPrime/ai-Trader-sub001/internal/news"
	"github.com/SCPrime/ai-Trader-sub001/internal/notify"
	"github.com/SCPrime/ai-Trader-sub001/internal/risk"
	"github.com/SCPrime/ai-Trader-sub001/internal/supervisor"
)

// RateLimiter provides simple in-memory rate limiting per client
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      config.ServerConfig
	authService *auth.Service
	authEnabled bool

	supervisor *supervisor.Supervisor
	riskMgr    *risk.Manager
	paper      *executor.Paper
	newsFeed   *news.Ingestor    // Nil when the news feed is disabled
	dispatcher *notify.Dispatcher
	repo       *database.Repository // Nil when PostgreSQL is disabled
	store      *database.RedisPendingStore

	hub         *WSHub
	rateLimiter *RateLimiter
	logger      zerolog.Logger
	startedAt   time.Time
}

// Deps bundles the components the server exposes
type Deps struct {
	AuthService *auth.Service // Nil disables authentication
	Supervisor  *supervisor.Supervisor
	RiskManager *risk.Manager
	Paper       *executor.Paper
	NewsFeed    *news.Ingestor
	Dispatcher  *notify.Dispatcher
	Repository  *database.Repository
	Store       *database.RedisPendingStore
	EventBus    *events.Bus
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	if origins := splitOrigins(cfg.AllowedOrigins); len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		config:      cfg,
		authService: deps.AuthService,
		authEnabled: deps.AuthService != nil,
		supervisor:  deps.Supervisor,
		riskMgr:     deps.RiskManager,
		paper:       deps.Paper,
		newsFeed:    deps.NewsFeed,
		dispatcher:  deps.Dispatcher,
		repo:        deps.Repository,
		store:       deps.Store,
		hub:         NewWSHub(logger),
		rateLimiter: NewRateLimiter(120, time.Minute),
		logger:      logger,
		startedAt:   time.Now(),
	}

	go server.hub.Run()
	if deps.EventBus != nil {
		deps.EventBus.SubscribeAll(server.hub.BroadcastEvent)
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())

	api.GET("/health", s.handleHealth)
	api.POST("/auth/login", s.handleLogin)

	protected := api.Group("")
	if s.authEnabled {
		protected.Use(auth.Middleware(s.authService.JWT()))
	}

	protected.GET("/status", s.handleStatus)

	protected.GET("/pending", s.handleListPending)
	protected.GET("/pending/:id", s.handleGetPending)

	protected.GET("/mode", s.handleGetMode)

	protected.GET("/risk/status", s.handleRiskStatus)
	protected.GET("/risk/metrics", s.handleRiskMetrics)

	protected.GET("/portfolio", s.handlePortfolio)

	protected.GET("/news/stories", s.handleNewsStories)
	protected.GET("/news/stats", s.handleNewsStats)

	protected.GET("/notifications/stats", s.handleNotifyStats)

	protected.GET("/decisions", s.handleListDecisions)

	admin := protected.Group("")
	if s.authEnabled {
		admin.Use(auth.RequireAdmin())
	}

	admin.POST("/trades/propose", s.handlePropose)
	admin.POST("/pending/:id/approve", s.handleApprove)
	admin.POST("/pending/:id/reject", s.handleReject)
	admin.PUT("/mode", s.handleSetMode)
	admin.POST("/risk/breaker/reset", s.handleBreakerReset)
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// Start runs the HTTP server until the listener fails
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	s.logger.Info().Str("address", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

func splitOrigins(origins string) []string {
	if origins == "" || origins == "*" {
		return []string{"*"}
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
