package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/imgindex/internal/app"
	"github.com/your-org/imgindex/internal/config"
	"github.com/your-org/imgindex/internal/event"
	"github.com/your-org/imgindex/internal/index"
	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/internal/observability"
	"github.com/your-org/imgindex/internal/processor"
	"github.com/your-org/imgindex/internal/queue"
	"github.com/your-org/imgindex/internal/storage"
)

type uploadProcessor interface {
	Process(ctx context.Context, up event.Upload) (*models.ImageRecord, error)
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	variant := flag.String("variant", "dedup", "processor variant: dedup or simple")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting imgindex upload worker",
		"variant", *variant,
		"workers", cfg.Worker.Count,
		"store", cfg.Store.Type,
		"cpu_cores", runtime.NumCPU(),
	)

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

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}
	if err := minioStore.EnsureNotification(ctx, cfg.MinIO.NotifyARN, cfg.MinIO.NotifyPrefix); err != nil {
		slog.Warn("ensure bucket notification", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Rekognition cannot reach MinIO, so image bytes are always sent inline.
	analyzer := app.NewAnalyzer(awsCfg, cfg.Analysis, minioStore)

	var proc uploadProcessor
	switch *variant {
	case "dedup":
		proc = processor.New(analyzer, store, index.NewDeduper(store, cfg.Dedup), minioStore.URLs(), producer)
	case "simple":
		proc = processor.NewLabeler(analyzer, store, minioStore.URLs(), producer)
	default:
		slog.Error("unknown processor variant", "variant", *variant)
		os.Exit(1)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeUploads(ctx, cfg.Worker.Consumer, func(ctx context.Context, up event.Upload) error {
		if _, err := proc.Process(ctx, up); err != nil {
			return fmt.Errorf("process %s/%s: %w", up.Bucket, up.Key, err)
		}
		return nil
	}, cfg.Worker.Count)
	if err != nil {
		slog.Error("start upload consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			pingCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			for name, ping := range map[string]func() error{
				"store": func() error { return store.Ping(pingCtx) },
				"minio": func() error { return minioStore.Ping(pingCtx) },
				"nats":  producer.Ping,
			} {
				if err := ping(); err != nil {
					http.Error(w, name+": "+err.Error(), http.StatusServiceUnavailable)
					return
				}
			}
			_, _ = w.Write([]byte(`{"status":"ready"}`))
		})
		slog.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}
