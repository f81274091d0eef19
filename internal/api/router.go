// Package api binds the queue core to its HTTP and websocket surface.
package api

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frontdesk-io/frontdesk-ce/internal/cache"
	"github.com/frontdesk-io/frontdesk-ce/internal/config"
	"github.com/frontdesk-io/frontdesk-ce/internal/dispatcher"
	"github.com/frontdesk-io/frontdesk-ce/internal/events"
	"github.com/frontdesk-io/frontdesk-ce/internal/lookup"
	"github.com/frontdesk-io/frontdesk-ce/internal/middleware"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository"
)

// Router owns the gin engine and the wiring between handlers and the core.
type Router struct {
	engine     *gin.Engine
	dispatcher *dispatcher.Dispatcher
	lookup     *lookup.Service
	store      *repository.Store
	hub        *events.Hub
	snapshots  *cache.SnapshotCache
	cfg        *config.Config
	logger     *log.Logger

	ping func() error
}

// Options carries the router dependencies.
type Options struct {
	Dispatcher *dispatcher.Dispatcher
	Lookup     *lookup.Service
	Store      *repository.Store
	Hub        *events.Hub
	Snapshots  *cache.SnapshotCache
	Config     *config.Config
	Logger     *log.Logger

	// Ping reports store health for /healthz.
	Ping func() error
}

// NewRouter assembles the engine with the shared middleware stack.
func NewRouter(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	r := &Router{
		engine:     gin.New(),
		dispatcher: opts.Dispatcher,
		lookup:     opts.Lookup,
		store:      opts.Store,
		hub:        opts.Hub,
		snapshots:  opts.Snapshots,
		cfg:        opts.Config,
		logger:     logger,
		ping:       opts.Ping,
	}
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Metrics())
	r.engine.Use(middleware.Timeout(r.cfg.Server.RequestTimeout))
	return r
}

// GetEngine exposes the underlying engine.
func (r *Router) GetEngine() *gin.Engine { return r.engine }

// SetupRoutes registers the public and admin surfaces.
func (r *Router) SetupRoutes() {
	publicLimit := middleware.NewRateLimiter(r.cfg.RateLimit.PublicPerMinute, time.Minute)
	// Window commands get their own per-minute bucket: several staff
	// windows often sit behind one campus NAT ip, and the 15-minute auth
	// budget is sized for credential attempts, not normal operation.
	commandLimit := middleware.NewRateLimiter(r.cfg.RateLimit.PublicPerMinute, time.Minute)
	authLimit := middleware.NewRateLimiter(r.cfg.RateLimit.AuthPer15Min, 15*time.Minute)

	r.engine.GET("/healthz", r.handleHealth)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.engine.GET("/ws", r.handleWebSocket)

	public := r.engine.Group("/", publicLimit.Middleware())
	{
		public.POST("/queue", r.handleAdmit)
		public.GET("/queue/:office", r.handlePublicSnapshot)
		public.GET("/tickets/:ticketId", r.handleTicketLookup)
		public.POST("/tickets/:ticketId/rating", r.handleRating)
		public.GET("/services/:office", r.handleListServices)
		public.GET("/windows/:office", r.handleListWindows)
		public.GET("/office-status/:office", r.handleOfficeStatus)
		public.GET("/location/:office", r.handleLocation)
	}

	admin := r.engine.Group("/queue", commandLimit.Middleware(), middleware.Auth(r.cfg.Auth.JWTSecret))
	{
		admin.POST("/next", r.handleNext)
		admin.POST("/recall", r.handleRecall)
		admin.POST("/previous", r.handlePrevious)
		admin.POST("/skip", r.handleSkip)
		admin.POST("/transfer", r.handleTransfer)
		admin.POST("/stop", r.handleStop)
		admin.POST("/requeue-all", r.handleRequeueAll)
		admin.POST("/requeue-selected", r.handleRequeueSelected)
	}

	dashboard := r.engine.Group("/admin", commandLimit.Middleware(), middleware.Auth(r.cfg.Auth.JWTSecret))
	{
		dashboard.GET("/snapshot/:windowId", r.handleAdminSnapshot)
	}

	auth := r.engine.Group("/auth", authLimit.Middleware(), middleware.Auth(r.cfg.Auth.JWTSecret))
	{
		auth.POST("/force-logout", r.handleForceLogout)
	}
}
