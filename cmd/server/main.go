package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frontdesk-io/frontdesk-ce/internal/api"
	"github.com/frontdesk-io/frontdesk-ce/internal/cache"
	"github.com/frontdesk-io/frontdesk-ce/internal/clock"
	"github.com/frontdesk-io/frontdesk-ce/internal/config"
	"github.com/frontdesk-io/frontdesk-ce/internal/database"
	"github.com/frontdesk-io/frontdesk-ce/internal/dispatcher"
	"github.com/frontdesk-io/frontdesk-ce/internal/events"
	"github.com/frontdesk-io/frontdesk-ce/internal/janitor"
	"github.com/frontdesk-io/frontdesk-ce/internal/lookup"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if err := config.Load(configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.Get()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.App.Timezone, err)
	}
	clk := clock.New(loc)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
	}
	log.Println("Successfully connected to database")

	var snapshots *cache.SnapshotCache
	if cfg.Redis.Enabled {
		snapshots, err = cache.New(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if err != nil {
			log.Printf("Redis unavailable, snapshot caching disabled: %v", err)
		} else {
			defer snapshots.Close()
		}
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "default-secret-change-in-production"
		log.Println("WARNING: Using default JWT secret. Change this in production!")
	}

	store := repository.NewPostgresStore(db)
	hub := events.NewHub(log.Default())
	defer hub.Close()

	disp := dispatcher.New(store, hub, clk, dispatcher.Options{})
	look := lookup.NewService(store, clk, cfg.Queue.LookupMaxAge)

	jan := janitor.New(store.Tickets, clk, log.Default(),
		janitor.WithRolloverDelay(cfg.Queue.RolloverDelay))
	if err := jan.Start(); err != nil {
		log.Fatalf("Failed to start janitor: %v", err)
	}
	defer jan.Stop()

	router := api.NewRouter(api.Options{
		Dispatcher: disp,
		Lookup:     look,
		Store:      store,
		Hub:        hub,
		Snapshots:  snapshots,
		Config:     cfg,
		Ping:       db.Ping,
	})
	router.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Starting FrontDesk server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
