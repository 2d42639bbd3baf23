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
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/imgindex/internal/config"
	"github.com/your-org/imgindex/internal/ingest"
	"github.com/your-org/imgindex/internal/observability"
	"github.com/your-org/imgindex/internal/queue"
	"github.com/your-org/imgindex/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	prefix := flag.String("prefix", "", "only enqueue objects under this key prefix")
	watch := flag.Bool("watch", false, "keep running and serve backfill requests on "+ingest.ControlSubject)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting imgindex ingestor", "bucket", cfg.MinIO.Bucket, "watch", *watch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Error("ensure nats streams", "error", err)
		os.Exit(1)
	}

	backfill := ingest.NewBackfill(minioStore, producer, cfg.AWS.Region)

	n, err := backfill.Run(ctx, *prefix)
	if err != nil {
		slog.Error("backfill", "prefix", *prefix, "enqueued", n, "error", err)
		if !*watch {
			os.Exit(1)
		}
	}
	if !*watch {
		return
	}

	// Serve later backfill requests via raw NATS (not JetStream)
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		slog.Error("connect to nats for control", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	_, err = nc.Subscribe(ingest.ControlSubject, func(msg *nats.Msg) {
		cmd, err := ingest.ParseCommand(msg.Data)
		if err != nil {
			slog.Error("parse command", "error", err)
			return
		}

		slog.Info("received backfill request", "prefix", cmd.Prefix)
		if _, err := backfill.Run(ctx, cmd.Prefix); err != nil {
			slog.Error("backfill", "prefix", cmd.Prefix, "error", err)
		}
	})
	if err != nil {
		slog.Error("subscribe to control", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("ingestor metrics listening", "addr", ":8081")
		if err := http.ListenAndServe(":8081", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down ingestor...")
	cancel()
	slog.Info("ingestor stopped")
}
