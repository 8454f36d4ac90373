package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"prizedraw/internal/config"
	"prizedraw/internal/draw"
	"prizedraw/internal/handlers"
	"prizedraw/internal/live"
	"prizedraw/internal/services"
	"prizedraw/internal/source"
)

func main() {
	configPath := flag.String("config", "configs/default.yaml", "Path to the YAML config file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	defer logger.Init("prizedraw", cfg.Verbose, false, io.Discard).Close()
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the comment store when one is configured
	var pools source.PoolSource
	if cfg.CommentDriver != "" {
		store, err := source.Open(ctx, cfg.CommentDriver, cfg.CommentDSN)
		if err != nil {
			logger.Fatalf("Failed to open comment store: %v", err)
		}
		defer store.Close()
		pools = store
		logger.Infof("Comment store ready (%s)", cfg.CommentDriver)
	}

	// 3. Start the live reveal hub
	hub := live.NewHub()
	go hub.Run(ctx)

	// 4. Initialize the Draw Service
	drawService := services.NewDrawService(services.Options{
		MaxWinners: cfg.MaxWinners,
		MaxDepth:   cfg.MaxDepth,
		SessionTTL: cfg.SessionTTL,
		Rand:       draw.NewRand(cfg.Seed),
		Source:     pools,
		Publisher:  hub,
	})

	// 5. Initialize the HTTP Handler and the Gin router
	httpHandler := handlers.NewHTTPHandler(drawService, hub)
	r := gin.Default()
	httpHandler.RegisterPublicRoutes(r)

	tenantRoutes := r.Group("/")
	tenantRoutes.Use(httpHandler.TenantMiddleware())
	httpHandler.RegisterTenantRoutes(tenantRoutes)

	// 6. Start the background janitor to clean up inactive sessions
	go func() {
		ticker := time.NewTicker(cfg.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				drawService.CleanUpInactiveSessions()
			}
		}
	}()

	// 7. Run the server until interrupted
	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
		Handler: r,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Infof("Server starting on http://localhost:%d", cfg.HTTPPort)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Failed to run server: %v", err)
	}
	logger.Info("Server stopped")
}
