package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/BrandonDHaskell/doorgate/internal/clock"
	"github.com/BrandonDHaskell/doorgate/internal/config"
	"github.com/BrandonDHaskell/doorgate/internal/db"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/callback"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
	sqlitestore "github.com/BrandonDHaskell/doorgate/internal/doorgate/store/sqlite"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
	"github.com/BrandonDHaskell/doorgate/internal/events"
	"github.com/BrandonDHaskell/doorgate/internal/grpcapi"
	"github.com/BrandonDHaskell/doorgate/internal/httpapi"
	"github.com/BrandonDHaskell/doorgate/internal/logging"
	"github.com/BrandonDHaskell/doorgate/internal/opener"
	"github.com/BrandonDHaskell/doorgate/internal/slack"
	"github.com/BrandonDHaskell/doorgate/internal/telemetry"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "doorgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", os.Getenv("DOORGATE_CONFIG"), "path to the YAML config file")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, version)
	startedAt := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	var sqlDB *sql.DB
	if cfg.Database.Path == "" {
		sqlDB, err = db.OpenMemory(ctx, "doorgate")
	} else {
		sqlDB, err = db.Open(ctx, db.Config{Path: cfg.Database.Path, Env: cfg.Database.Env})
	}
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	writer := db.NewWorker(sqlDB)
	defer writer.Close()

	doors := make([]types.Door, 0, len(cfg.Doors))
	for _, d := range cfg.Doors {
		doors = append(doors, types.Door{ID: strings.TrimSpace(d.ID), Name: d.Name, Relay: d.Relay, Token: d.Token})
	}
	acl := service.NormalizeACL(cfg.ACL)
	if err := db.SyncRegistry(ctx, writer, doors, acl); err != nil {
		return fmt.Errorf("sync registry: %w", err)
	}
	logger.Info("registry loaded", "doors", len(doors), "acl_entries", len(acl))

	registry := sqlitestore.NewRegistryStore(sqlDB)
	heartbeatStore := sqlitestore.NewHeartbeatStore(sqlDB, writer)

	// Collaborators
	key, err := cfg.DeviceKeyBytes()
	if err != nil {
		return err
	}
	doorClient, err := opener.NewClient(opener.Config{
		Addr:            cfg.Opener.Addr,
		Key:             key,
		ConnectTimeout:  cfg.Opener.ConnectTimeout,
		ResponseTimeout: cfg.Opener.ResponseTimeout,
	})
	if err != nil {
		return fmt.Errorf("opener client: %w", err)
	}

	codec, err := callback.NewCodec(cfg.Auth.SigningSecret, startedAt)
	if err != nil {
		return fmt.Errorf("callback codec: %w", err)
	}

	notifier := slack.NewClient(slack.Config{
		Token:         cfg.Slack.Token,
		ReportChannel: cfg.Slack.ReportChannel,
		APIBaseURL:    cfg.Slack.APIBaseURL,
		Timeout:       cfg.Slack.Timeout,
	}, logger.With("component", "slack"))

	var (
		sinks     service.EventSinks
		metrics   service.Metrics
		listeners = []service.HealthListener{notifier}
	)

	if cfg.MQTT.Enabled {
		pub, err := events.Connect(cfg.MQTT, logger.With("component", "mqtt"))
		if err != nil {
			logger.Warn("mqtt unavailable, events disabled", "error", err)
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
			listeners = append(listeners, pub)
		}
	}

	if cfg.InfluxDB.Enabled {
		rec, err := telemetry.Connect(cfg.InfluxDB, logger.With("component", "influxdb"))
		if err != nil {
			logger.Warn("influxdb unavailable, telemetry disabled", "error", err)
		} else {
			defer rec.Close()
			sinks = append(sinks, rec)
			metrics = rec
		}
	}

	var grpcServer *grpcapi.Server
	if cfg.GRPC.Addr != "" {
		grpcServer = grpcapi.NewServer(logger.With("component", "grpc"))
		listeners = append(listeners, grpcServer)
	}

	// Services
	clk := clock.Real()

	tracker := service.NewConfirmationTracker(notifier, clk, cfg.Auth.ConfirmationWindow, logger)
	engine := service.NewAuthDecisionEngine(service.EngineDeps{
		Doors:    registry,
		ACL:      service.NewAccessControlLookup(registry),
		Throttle: service.NewAttemptThrottle(cfg.Auth.ThrottleCooldown),
		Recent:   service.NewRecentAuthentications(),
		Tracker:  tracker,
		Codec:    codec,
		Opener:   doorClient,
		Notifier: notifier,
		Events:   sinks,
		Metrics:  metrics,
		Clock:    clk,
		Logger:   logger,
		Policy: service.Policy{
			ReauthWindow:       cfg.Auth.ReauthWindow,
			ConfirmationWindow: cfg.Auth.ConfirmationWindow,
			RequireDeviceToken: cfg.Auth.RequireDeviceToken,
		},
	})

	watchdog := service.NewHealthWatchdog(heartbeatStore, service.WatchdogConfig{
		HealthyTimeout:   cfg.Opener.HealthyTimeout,
		ReminderInterval: cfg.Opener.ReminderInterval,
	}, clk, logger, listeners...)
	watchdog.Start(ctx)
	defer watchdog.Stop()

	pruner := service.NewHeartbeatPruner(heartbeatStore, service.PrunerConfig{
		RetentionDays: cfg.Opener.HeartbeatRetentionDays,
		IntervalHours: cfg.Opener.PruneIntervalHours,
	}, clk, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	// Transports
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:            logger,
		Addr:              cfg.HTTP.Addr,
		Engine:            engine,
		Watchdog:          watchdog,
		VerificationToken: cfg.Slack.VerificationToken,
	})

	go func() {
		logger.Info("http listening", "addr", cfg.HTTP.Addr, "env", cfg.Database.Env)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	if grpcServer != nil {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("grpc server error", "error", err)
				stop()
			}
		}()
		defer grpcServer.Stop()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
