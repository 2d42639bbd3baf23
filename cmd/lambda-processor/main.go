package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/your-org/imgindex/internal/app"
	"github.com/your-org/imgindex/internal/config"
	"github.com/your-org/imgindex/internal/index"
	"github.com/your-org/imgindex/internal/lambdafn"
	"github.com/your-org/imgindex/internal/observability"
	"github.com/your-org/imgindex/internal/processor"
	"github.com/your-org/imgindex/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()
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

	proc := processor.New(
		app.NewAnalyzer(awsCfg, cfg.Analysis, nil),
		store,
		index.NewDeduper(store, cfg.Dedup),
		storage.S3URLs{Region: cfg.AWS.Region},
		nil,
	)

	slog.Info("image processor ready", "table", cfg.Store.DynamoDB.Table, "dedup", cfg.Dedup.Strategy)
	lambda.Start(lambdafn.NewUploadHandler(proc).Handle)
}
