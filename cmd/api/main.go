package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/your-org/imgindex/internal/api"
	"github.com/your-org/imgindex/internal/api/handlers"
	"github.com/your-org/imgindex/internal/api/ws"
	"github.com/your-org/imgindex/internal/app"
	"github.com/your-org/imgindex/internal/config"
	"github.com/your-org/imgindex/internal/observability"
	"github.com/your-org/imgindex/internal/queue"
	"github.com/your-org/imgindex/internal/search"
	"github.com/your-org/imgindex/internal/storage"
	"github.com/your-org/imgindex/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting imgindex API service", "port", cfg.Server.Port, "store", cfg.Store.Type)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := app.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		slog.Error("load aws config", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := app.OpenStore(ctx, cfg, awsCfg)
	if err != nil {
		slog.Error("open record store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	urls, bucket := app.URLs(cfg)
	searcher := search.New(store, urls, bucket)

	checks := []handlers.Check{{Name: cfg.Store.Type, Ping: store.Ping}}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	if cfg.NATS.URL != "" {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}
		checks = append(checks, handlers.Check{
			Name: "nats",
			Ping: func(context.Context) error { return producer.Ping() },
		})

		// Broadcast stored records via WebSocket
		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create record consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		err = consumer.ConsumeRecords(ctx, "api-records", func(_ context.Context, rec dto.ImageResponse) error {
			rec.URL = storage.ResolveURL(urls, bucket, rec.URL)
			hub.BroadcastImage(rec)
			return nil
		})
		if err != nil {
			slog.Warn("start record consumer", "error", err)
		}
	} else {
		slog.Warn("nats url not set, live feed disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		Searcher: searcher,
		Hub:      hub,
		Checks:   checks,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
