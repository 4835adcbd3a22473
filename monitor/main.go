package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/imagerelay/imagerelay/internal/creds"
	"github.com/imagerelay/imagerelay/internal/platform/awsx"
	"github.com/imagerelay/imagerelay/internal/platform/httpserver"
	"github.com/imagerelay/imagerelay/internal/platform/postgres"
	repopg "github.com/imagerelay/imagerelay/internal/repo/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := ConfigFromEnv()
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := repopg.EnsureSchema(ctx, db); err != nil {
		logger.Error("schema init failed", "error", err)
		os.Exit(1)
	}
	bindings := repopg.NewBindingStore(db)

	awsCfg, err := awsx.LoadConfig(ctx, cfg.Region)
	if err != nil {
		logger.Error("aws config failed", "error", err)
		os.Exit(1)
	}
	issuer := creds.NewIssuer(sts.NewFromConfig(awsCfg), cfg.AssumeRoleSessionName)

	startReconciler(ctx, &reconciler{
		logger:   logger,
		store:    bindings,
		issuer:   issuer,
		clients:  &pipelineClientFactory{logger: logger},
		region:   cfg.Region,
		interval: cfg.ScanInterval,
		batch:    cfg.ScanBatch,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("monitor"))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks("monitor", httpserver.ReadinessCheck{
		Name: "postgres",
		Check: func(ctx context.Context) error {
			checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return db.PingContext(checkCtx)
		},
	}))

	serverCfg := httpserver.Config{
		Service:         "monitor",
		Addr:            cfg.Addr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	if err := httpserver.Run(ctx, logger, serverCfg, httpserver.Wrap(logger, "monitor", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
