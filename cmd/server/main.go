package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/shortform-agent/internal/agent/editor"
	"github.com/shortform-agent/internal/agent/scriptwriter"
	"github.com/shortform-agent/internal/ai"
	"github.com/shortform-agent/internal/config"
	"github.com/shortform-agent/internal/conveyor"
	"github.com/shortform-agent/internal/events"
	"github.com/shortform-agent/internal/ingest"
	"github.com/shortform-agent/internal/ingest/rss"
	"github.com/shortform-agent/internal/pipeline"
	"github.com/shortform-agent/internal/server"
	"github.com/shortform-agent/internal/storage/sqlite"
	"github.com/shortform-agent/pkg/logger"
	"github.com/shortform-agent/pkg/ratelimit"
)

const defaultUserID = "default"

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shortform-server",
		Short: "Background daemon for the short-form script agent",
		Long: `Runs the content conveyor on a schedule and serves the event
stream and control endpoints. Run as a service for autonomous operation.`,
		RunE: runServer,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting shortform agent server")

	// Storage
	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Shared infrastructure
	limiter := ratelimit.NewDefaultLimiter()
	aiClient := ai.NewClient(cfg.Anthropic, limiter, log)
	broker := events.NewBroker(events.Options{
		ReplaySize: cfg.Events.ReplayBufferSize,
		SubBuffer:  cfg.Events.SubscriberBuffer,
	}, repo, log)

	// Pipeline
	writerAgent := scriptwriter.NewAgent(aiClient, log)
	editorAgent := editor.NewAgent(aiClient, log)
	controller := pipeline.NewController(writerAgent, editorAgent, repo, broker, defaultUserID, cfg.Conveyor.MaxTransportRetries, log)
	runner := pipeline.NewRunner(controller, log)

	// Conveyor
	scorer := conveyor.NewScorer(aiClient, log)
	scheduler := conveyor.NewScheduler(repo, runner, scorer, defaultUserID, conveyor.Options{
		LearnedThresholdMinHistory: cfg.Conveyor.LearnedThresholdMinHistory,
		LearnedThresholdWindow:     cfg.Conveyor.LearnedThresholdWindow,
	}, log)
	runner.OnTerminal = scheduler.RecordCompletion

	// Ingestion
	ingestor := ingest.NewIngestor(repo, log)
	if cfg.Ingest.RSS.Enabled {
		for _, src := range rss.NewMultiple(cfg.Ingest.RSS, log) {
			ingestor.Register(src)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cron: ingest then run a scheduling pass
	c := cron.New(cron.WithLogger(cronLogger{log}))
	_, err = c.AddFunc(cfg.Conveyor.PassCron, func() {
		log.Info().Msg("Running scheduled conveyor pass")

		if _, err := ingestor.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled ingestion failed")
		}

		result, err := scheduler.Trigger(ctx)
		if err != nil {
			switch {
			case errors.Is(err, conveyor.ErrPaused),
				errors.Is(err, conveyor.ErrDisabled),
				errors.Is(err, conveyor.ErrDailyLimit),
				errors.Is(err, conveyor.ErrBudgetExhausted):
				log.Info().Str("reason", err.Error()).Msg("Conveyor pass skipped")
			default:
				log.Error().Err(err).Msg("Conveyor pass failed")
			}
			return
		}

		log.Info().
			Int("scored", result.Scored).
			Int("enqueued", result.Enqueued).
			Msg("Conveyor pass completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule conveyor pass: %w", err)
	}
	log.Info().Str("cron", cfg.Conveyor.PassCron).Msg("Conveyor pass scheduled")

	c.Start()

	// HTTP surface
	srv := server.New(broker, scheduler, repo, defaultUserID, cfg.Events.HistoryLimit, log)
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	// Stop accepting new work, then wait for in-flight scripts to reach
	// their iteration boundaries
	scheduler.Pause()
	c.Stop()
	cancel()
	runner.Wait()

	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}
