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

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/imagerelay/imagerelay/internal/creds"
	"github.com/imagerelay/imagerelay/internal/platform/auth"
	"github.com/imagerelay/imagerelay/internal/platform/awsx"
	"github.com/imagerelay/imagerelay/internal/platform/httpserver"
	"github.com/imagerelay/imagerelay/internal/platform/postgres"
	"github.com/imagerelay/imagerelay/internal/registry"
	repopg "github.com/imagerelay/imagerelay/internal/repo/postgres"
	"github.com/imagerelay/imagerelay/internal/telemetry"
	"github.com/imagerelay/imagerelay/internal/varstore"
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

	varsCfg, err := varstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid varstore config", "error", err)
		os.Exit(2)
	}
	var vars varstore.Store
	var varsCheck func(context.Context) error
	if varsCfg.Enabled {
		minioStore, err := varstore.NewMinIOStore(varsCfg)
		if err != nil {
			logger.Error("varstore client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := minioStore.EnsureBucket(startupCtx, varsCfg.Region); err != nil {
			cancel()
			logger.Error("varstore unavailable", "error", err)
			os.Exit(1)
		}
		cancel()
		vars = minioStore
		varsCheck = minioStore.Check
	} else {
		logger.Info("variable store disabled, pipeline variables limited to the correlation token")
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	authenticator, err := auth.New(ctx, authCfg)
	if err != nil {
		logger.Error("auth init failed", "error", err)
		os.Exit(2)
	}

	awsCfg, err := awsx.LoadConfig(ctx, cfg.Region)
	if err != nil {
		logger.Error("aws config failed", "error", err)
		os.Exit(1)
	}

	resolver := registry.NewResolver(ecr.NewFromConfig(awsCfg), logger)
	issuer := creds.NewIssuer(sts.NewFromConfig(awsCfg), cfg.AssumeRoleSessionName)
	metrics := telemetry.NewSink(cloudwatch.NewFromConfig(awsCfg), cfg.MetricsNamespace, logger)

	proc := &processor{
		logger:  logger,
		cfg:     cfg,
		store:   bindings,
		issuer:  issuer,
		clients: &awsClientFactory{logger: logger, vars: vars},
	}
	orch := &orchestrator{
		logger:    logger,
		cfg:       cfg,
		store:     bindings,
		resolver:  resolver,
		processor: proc,
		metrics:   metrics,
	}

	if cfg.SubscriptionsFile != "" {
		if err := seedSubscriptions(ctx, logger, bindings, cfg.SubscriptionsFile); err != nil {
			logger.Error("subscription seed failed", "file", cfg.SubscriptionsFile, "error", err)
			os.Exit(1)
		}
	}

	readiness := []httpserver.ReadinessCheck{
		{
			Name: "postgres",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return db.PingContext(checkCtx)
			},
		},
	}
	if varsCheck != nil {
		readiness = append(readiness, httpserver.ReadinessCheck{
			Name: "varstore",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return varsCheck(checkCtx)
			},
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("controller"))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks("controller", readiness...))

	api := newRelayAPI(logger, orch, bindings, vars)
	api.register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		SkipPrefixes:  []string{"/healthz", "/readyz"},
	}.Wrap(mux)

	serverCfg := httpserver.Config{
		Service:         "controller",
		Addr:            cfg.Addr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	if err := httpserver.Run(ctx, logger, serverCfg, httpserver.Wrap(logger, "controller", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
