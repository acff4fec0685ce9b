package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discarch/internal/archiver"
	"discarch/internal/config"
	"discarch/internal/constants"
	"discarch/internal/database"
	"discarch/internal/heartbeat"
	"discarch/internal/models"
	"discarch/internal/retry"
	"discarch/internal/throttle"
	"discarch/internal/tracing"
	"discarch/pkg/discord"
	"discarch/pkg/notion"
	"discarch/pkg/storage"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
	backfill   = flag.Bool("backfill", false, "Archive channel history from the configured start date, then exit")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("discarch %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting discarch")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	ctx = tracing.WithRunTracing(ctx)
	logger.WithField("run_id", tracing.GetRunID(ctx)).Info("Run started")

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize the archive index with exponential backoff retry
	var db *database.Database
	dbBackoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(constants.DefaultDatabaseBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(constants.DefaultDatabaseMaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})
	err = dbBackoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	if err := db.CleanupOldEntries(cfg.RetentionDays); err != nil {
		logger.Warnf("Failed to clean up old index entries: %v", err)
	}

	var store notion.Client
	if cfg.Notion.Configured() {
		store = notion.NewClient(
			cfg.Notion.APIBaseURL,
			cfg.Notion.Token,
			cfg.Notion.DatabaseID,
			&http.Client{Timeout: time.Duration(cfg.Notion.TimeoutSec) * time.Second},
			logger,
		)
	} else {
		logger.Warn("No Notion store configured, messages go to the local backup only")
	}

	source := discord.NewClient(
		cfg.Discord.APIBaseURL,
		cfg.Discord.Token,
		&http.Client{Timeout: time.Duration(cfg.Discord.TimeoutSec) * time.Second},
		logger,
	)

	var uploader storage.Uploader
	if cfg.Storage.UploadURL != "" {
		uploader = storage.NewHTTPUploader(
			cfg.Storage.UploadURL,
			cfg.Storage.AuthToken,
			cfg.Storage.FolderID,
			&http.Client{Timeout: time.Duration(cfg.Storage.TimeoutSec) * time.Second},
			logger,
		)
	} else {
		logger.Info("No storage backend configured, attachments fall back to source URLs")
	}

	attachments := archiver.NewAttachmentProcessor(cfg.Backup.BufferDir, uploader, nil, logger)
	mapper := archiver.NewMapper(store, db, attachments, cfg.Backup.MaxContent, logger)
	backup := archiver.NewBackupWriter(cfg.Backup.FilePath, cfg.Backup.PrettyPrint, logger)

	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffSec) * time.Second,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffSec) * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
	})
	arch := archiver.NewArchiver(store, cfg.Notion.DatabaseID, db, mapper, backup, backoff, logger)

	pinger := heartbeat.NewPinger(
		cfg.Heartbeat.PingURL,
		time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second,
		logger,
	)

	server := NewServer(cfg.Server.Port, db, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()
	defer shutdownServer(server, logger)

	if *backfill {
		return runBackfill(ctx, cfg, source, arch, pinger, logger)
	}
	return runMonitor(ctx, cfg, source, arch, pinger, logger, serverErrCh)
}

// runBackfill archives channel history, lingers briefly so trailing writes
// and pings flush, then exits.
func runBackfill(ctx context.Context, cfg *models.Config, source discord.Client, arch *archiver.Archiver, pinger *heartbeat.Pinger, logger *logrus.Logger) error {
	start, err := time.Parse(time.RFC3339, cfg.Backfill.StartDate)
	if err != nil {
		return fmt.Errorf("invalid backfill start date: %w", err)
	}

	pacer := throttle.NewPacer(throttle.Config{
		BaseDelay:   time.Duration(cfg.Throttle.BaseDelayMs) * time.Millisecond,
		Jitter:      time.Duration(cfg.Throttle.JitterMs) * time.Millisecond,
		MediumEvery: cfg.Throttle.MediumEvery,
		HeavyEvery:  cfg.Throttle.HeavyEvery,
	})

	driver := archiver.NewBackfill(
		source, arch, pacer, pinger,
		cfg.Discord.GuildID, cfg.Discord.ChannelIDs,
		start, cfg.Backfill.HeartbeatEvery,
		logger,
	)

	stats, err := driver.Run(ctx)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"messages": stats.Messages,
		"archived": stats.Archived,
		"failed":   stats.Failed,
	}).Info("Backfill done, lingering before exit")

	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(cfg.Backfill.LingerSec) * time.Second):
	}
	return nil
}

// runMonitor archives live messages from the event gateway until interrupted.
func runMonitor(ctx context.Context, cfg *models.Config, source discord.Client, arch *archiver.Archiver, pinger *heartbeat.Pinger, logger *logrus.Logger, serverErrCh <-chan error) error {
	messageLog := archiver.NewLogWriter(cfg.Backup.MessageLog)
	monitor := archiver.NewMonitor(source, arch, messageLog, cfg.Discord.GuildID, cfg.Discord.ChannelIDs, logger)

	if err := monitor.Prepare(ctx); err != nil {
		return err
	}

	gateway := discord.NewGateway(cfg.Discord.GatewayURL, cfg.Discord.Token, monitor.HandleMessage, logger)
	if err := gateway.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	defer gateway.Stop()

	pinger.Start(ctx)
	ticker := time.NewTicker(time.Duration(cfg.Heartbeat.IntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Received shutdown signal")
			return nil
		case <-ticker.C:
			pinger.Ping(ctx)
		case err := <-serverErrCh:
			logger.Error(err)
			return err
		}
	}
}

func shutdownServer(server *Server, logger *logrus.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Failed to shut down status server: %v", err)
	}
}
