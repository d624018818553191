package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shortform-agent/internal/agent/editor"
	"github.com/shortform-agent/internal/agent/scriptwriter"
	"github.com/shortform-agent/internal/ai"
	"github.com/shortform-agent/internal/config"
	"github.com/shortform-agent/internal/conveyor"
	"github.com/shortform-agent/internal/events"
	"github.com/shortform-agent/internal/ingest"
	"github.com/shortform-agent/internal/ingest/rss"
	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/internal/pipeline"
	"github.com/shortform-agent/internal/storage"
	"github.com/shortform-agent/internal/storage/sqlite"
	"github.com/shortform-agent/pkg/logger"
	"github.com/shortform-agent/pkg/ratelimit"
	"github.com/shortform-agent/pkg/sse"
)

const defaultUserID = "default"

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shortform",
		Short: "Short-form video script agent powered by AI",
		Long: `An autonomous agent that turns news items into short-form video
scripts through a scriptwriter/editor revision loop.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(conveyorCmd())
	rootCmd.AddCommand(itemsCmd())
	rootCmd.AddCommand(scriptsCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// buildRunner assembles the full generation pipeline for in-process runs
func buildRunner() (*pipeline.Runner, *events.Broker) {
	limiter := ratelimit.NewDefaultLimiter()
	aiClient := ai.NewClient(cfg.Anthropic, limiter, log)
	broker := events.NewBroker(events.Options{
		ReplaySize: cfg.Events.ReplayBufferSize,
		SubBuffer:  cfg.Events.SubscriberBuffer,
	}, repo, log)

	writerAgent := scriptwriter.NewAgent(aiClient, log)
	editorAgent := editor.NewAgent(aiClient, log)
	controller := pipeline.NewController(writerAgent, editorAgent, repo, broker, defaultUserID, cfg.Conveyor.MaxTransportRetries, log)
	return pipeline.NewRunner(controller, log), broker
}

// ============ INGEST COMMANDS ============

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Content ingestion commands",
	}

	cmd.AddCommand(ingestRunCmd())
	return cmd
}

func ingestRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch content from all configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ingestor := ingest.NewIngestor(repo, log)
			if cfg.Ingest.RSS.Enabled {
				for _, src := range rss.NewMultiple(cfg.Ingest.RSS, log) {
					ingestor.Register(src)
				}
			}

			result, err := ingestor.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Ingestion Results ===\n")
			fmt.Printf("Items Fetched: %d\n", result.Fetched)
			fmt.Printf("Items Saved:   %d\n", result.Saved)
			fmt.Printf("Items Skipped: %d\n", result.Skipped)
			fmt.Printf("Duration:      %s\n", result.Duration)

			if len(result.Errors) > 0 {
				fmt.Printf("\nErrors:\n")
				for _, e := range result.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}

			return nil
		},
	}

	return cmd
}

// ============ GENERATE COMMAND ============

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [item-id]",
		Short: "Run script generation for a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			itemID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid item ID: %w", err)
			}

			item, err := repo.GetContentItemByID(ctx, uint(itemID))
			if err != nil {
				return fmt.Errorf("item not found: %w", err)
			}

			runner, broker := buildRunner()

			// Print progress events while the run is in flight
			id := uint(itemID)
			sub := broker.Subscribe(&id)
			defer broker.Unsubscribe(sub)
			go func() {
				for event := range sub.Events() {
					switch event.Type {
					case models.EventThinking:
						// Too chatty for the CLI; visible via 'watch'
					default:
						fmt.Printf("[%s] %s %s\n", event.Timestamp.Format("15:04:05"), event.Type, formatEventData(event.Data))
					}
				}
			}()

			item.Status = models.ContentStatusSelected
			if err := repo.UpdateContentItem(ctx, item); err != nil {
				return fmt.Errorf("failed to mark item selected: %w", err)
			}

			script := &models.Script{
				ContentItemID: item.ID,
				Status:        models.ScriptStatusPending,
			}
			if err := repo.CreateScript(ctx, script); err != nil {
				return fmt.Errorf("failed to create script: %w", err)
			}

			fmt.Printf("Generating script for item %d: %s\n\n", item.ID, item.Title)

			result, err := runner.Run(ctx, script.ID)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Generation Result ===\n")
			fmt.Printf("Script ID:  %d\n", result.ID)
			fmt.Printf("Status:     %s\n", result.Status)
			if result.Outcome != "" {
				fmt.Printf("Outcome:    %s\n", result.Outcome)
			}
			if result.FinalScore != nil {
				fmt.Printf("Score:      %d/10\n", *result.FinalScore)
			}
			fmt.Printf("Iterations: %d\n", result.CurrentIteration)
			fmt.Printf("Cost:       $%.4f\n", result.TotalCostUSD)
			if result.ErrorMessage != "" {
				fmt.Printf("Error:      %s\n", result.ErrorMessage)
			}
			fmt.Printf("\nUse 'scripts timeline %d' to inspect every draft and review.\n", result.ID)

			return nil
		},
	}

	return cmd
}

// ============ CONVEYOR COMMANDS ============

func conveyorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conveyor",
		Short: "Autonomous conveyor control",
	}

	cmd.AddCommand(conveyorTriggerCmd())
	cmd.AddCommand(conveyorStatusCmd())
	cmd.AddCommand(conveyorControlCmd("pause", "Pause the running conveyor daemon"))
	cmd.AddCommand(conveyorControlCmd("resume", "Resume the running conveyor daemon"))
	return cmd
}

func conveyorTriggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Run one scheduling pass in-process",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			limiter := ratelimit.NewDefaultLimiter()
			aiClient := ai.NewClient(cfg.Anthropic, limiter, log)
			runner, _ := buildRunner()
			scorer := conveyor.NewScorer(aiClient, log)
			scheduler := conveyor.NewScheduler(repo, runner, scorer, defaultUserID, conveyor.Options{
				LearnedThresholdMinHistory: cfg.Conveyor.LearnedThresholdMinHistory,
				LearnedThresholdWindow:     cfg.Conveyor.LearnedThresholdWindow,
			}, log)
			runner.OnTerminal = scheduler.RecordCompletion

			result, err := scheduler.Trigger(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Conveyor Pass ===\n")
			fmt.Printf("Items Scored:    %d\n", result.Scored)
			fmt.Printf("Items Dismissed: %d\n", result.Dismissed)
			fmt.Printf("Items Enqueued:  %d\n", result.Enqueued)
			fmt.Printf("Below Threshold: %d\n", result.SkippedThreshold)
			fmt.Printf("Duration:        %s\n", result.Duration)

			if result.Enqueued > 0 {
				fmt.Printf("\nWaiting for %d generation(s) to finish...\n", result.Enqueued)
				runner.Wait()
			}

			return nil
		},
	}

	return cmd
}

func conveyorStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show conveyor settings and spend counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			settings, err := repo.GetConveyorSettings(ctx, defaultUserID)
			if err != nil {
				return err
			}
			stats, err := repo.GetConveyorStats(ctx, defaultUserID, time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Conveyor Status ===\n")
			fmt.Printf("Enabled:        %v\n", settings.Enabled)
			fmt.Printf("Daily Limit:    %d (used today: %d)\n", settings.DailyLimit, stats.ItemsToday)
			fmt.Printf("Monthly Budget: $%.2f (spent: $%.4f)\n", settings.MonthlyBudgetUSD, stats.MonthCostUSD)
			fmt.Printf("Min Score:      %.0f\n", settings.MinScoreThreshold)
			if len(settings.AvoidedTopics) > 0 {
				fmt.Printf("Avoided Topics: %v\n", []string(settings.AvoidedTopics))
			}

			return nil
		},
	}

	return cmd
}

// conveyorControlCmd posts pause/resume to the daemon's control endpoint.
// The pause flag lives in the daemon process, so these go over HTTP.
func conveyorControlCmd(action, short string) *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Post(fmt.Sprintf("%s/conveyor/%s", serverURL, action), "application/json", nil)
			if err != nil {
				return fmt.Errorf("failed to reach daemon at %s: %w", serverURL, err)
			}
			defer resp.Body.Close()

			var body struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}

			fmt.Println(body.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Daemon base URL")
	return cmd
}

// formatEventData renders the event payload as compact JSON
func formatEventData(data models.JSON) string {
	if len(data) == 0 {
		return ""
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// ============ ITEMS COMMANDS ============

func itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List and manage content items",
	}

	cmd.AddCommand(itemsListCmd())
	return cmd
}

func itemsListCmd() *cobra.Command {
	var status string
	var minScore float64
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested content items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.DefaultContentFilter()
			filter.Limit = limit

			if minScore > 0 {
				filter.MinScore = &minScore
			}

			if status != "" {
				s := models.ContentStatus(status)
				filter.Status = &s
			}

			items, err := repo.ListContentItems(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Content Items (%d) ===\n\n", len(items))
			for _, item := range items {
				fmt.Printf("[%d] %.0f%% | %s\n", item.ID, item.Score, item.Title)
				fmt.Printf("    Source: %s | Status: %s\n", item.SourceName, item.Status)
				if item.Analysis != "" {
					fmt.Printf("    Analysis: %s\n", item.Analysis)
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (new, scored, selected, used, dismissed)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Minimum relevance score")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum items to show")

	return cmd
}

// ============ SCRIPTS COMMANDS ============

func scriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List and inspect generated scripts",
	}

	cmd.AddCommand(scriptsListCmd())
	cmd.AddCommand(scriptsTimelineCmd())
	return cmd
}

func scriptsListCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List generation attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.DefaultScriptFilter()
			filter.Limit = limit

			if status != "" {
				s := models.ScriptStatus(status)
				filter.Status = &s
			}

			scripts, err := repo.ListScripts(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Scripts (%d) ===\n\n", len(scripts))
			for _, s := range scripts {
				itemTitle := "N/A"
				if s.ContentItem != nil {
					itemTitle = s.ContentItem.Title
				}

				fmt.Printf("[%d] %s", s.ID, s.Status)
				if s.FinalScore != nil {
					fmt.Printf(" | %d/10", *s.FinalScore)
				}
				fmt.Printf(" | %d iteration(s)\n", s.CurrentIteration)
				fmt.Printf("    Item: %s\n", itemTitle)
				fmt.Printf("    Cost: $%.4f | Created: %s\n", s.TotalCostUSD, s.CreatedAt.Format(time.RFC1123))
				if s.Outcome != "" {
					fmt.Printf("    Outcome: %s\n", s.Outcome)
				}
				if s.ErrorMessage != "" {
					fmt.Printf("    Error: %s\n", s.ErrorMessage)
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, in_progress, approved, rejected, human_review, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum scripts to show")

	return cmd
}

func scriptsTimelineCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "timeline [script-id]",
		Short: "Show every draft and review of a script, in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			scriptID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid script ID: %w", err)
			}

			script, err := repo.GetScriptByID(ctx, uint(scriptID))
			if err != nil {
				return fmt.Errorf("script not found: %w", err)
			}

			iterations, err := repo.GetIterations(ctx, uint(scriptID))
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Script %d Timeline ===\n", script.ID)
			fmt.Printf("Status: %s", script.Status)
			if script.FinalScore != nil {
				fmt.Printf(" | Final Score: %d/10", *script.FinalScore)
			}
			fmt.Printf(" | Cost: $%.4f\n", script.TotalCostUSD)

			for _, it := range iterations {
				fmt.Printf("\n--- Iteration %d ---\n", it.Version)

				if it.Draft != nil {
					scenes, err := it.Draft.Scenes()
					if err != nil {
						fmt.Printf("  (unreadable draft: %s)\n", err)
					} else {
						fmt.Printf("Draft: %d scene(s), %.0fs total\n", len(scenes), it.Draft.TotalSec)
						if full {
							for _, scene := range scenes {
								fmt.Printf("  Scene %d (%.0fs)\n", scene.Number, scene.DurationSec)
								fmt.Printf("    Narration: %s\n", scene.Narration)
								fmt.Printf("    Visual:    %s\n", scene.Visual)
							}
						}
					}
				}

				if it.Review != nil {
					fmt.Printf("Review: %d/10 | %s\n", it.Review.Score, it.Review.Verdict)
					fmt.Printf("  %s\n", it.Review.Comment)
					for _, c := range it.Review.SceneComments {
						fmt.Printf("  [%s] Scene %d: %s\n", c.Type.Label(), c.SceneNumber, c.Comment)
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Print full scene text for every draft")
	return cmd
}

// ============ SETTINGS COMMANDS ============

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "View and update generation settings",
	}

	cmd.AddCommand(settingsShowCmd())
	cmd.AddCommand(settingsSetAICmd())
	cmd.AddCommand(settingsSetConveyorCmd())
	return cmd
}

func settingsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			aiSettings, err := repo.GetAISettings(ctx, defaultUserID)
			if err != nil {
				return err
			}
			convSettings, err := repo.GetConveyorSettings(ctx, defaultUserID)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== AI Settings ===\n")
			fmt.Printf("Provider:         %s\n", aiSettings.Provider)
			fmt.Printf("Max Iterations:   %d\n", aiSettings.MaxIterations)
			fmt.Printf("Min Approval:     %d/10\n", aiSettings.MinApprovalScore)
			fmt.Printf("Auto Escalate:    %v\n", aiSettings.AutoEscalate)
			fmt.Printf("Target Duration:  %ds\n", aiSettings.TargetDurationSec)
			fmt.Printf("Style Examples:   %d\n", len(aiSettings.StyleExamples))
			if aiSettings.ScriptwriterPrompt != "" {
				fmt.Printf("Writer Prompt:    %s\n", aiSettings.ScriptwriterPrompt)
			}
			if aiSettings.EditorPrompt != "" {
				fmt.Printf("Editor Prompt:    %s\n", aiSettings.EditorPrompt)
			}

			fmt.Printf("\n=== Conveyor Settings ===\n")
			fmt.Printf("Enabled:        %v\n", convSettings.Enabled)
			fmt.Printf("Daily Limit:    %d\n", convSettings.DailyLimit)
			fmt.Printf("Monthly Budget: $%.2f\n", convSettings.MonthlyBudgetUSD)
			fmt.Printf("Min Score:      %.0f\n", convSettings.MinScoreThreshold)

			return nil
		},
	}

	return cmd
}

func settingsSetAICmd() *cobra.Command {
	var maxIterations, minScore, targetDuration int
	var autoEscalate bool
	var writerPrompt, editorPrompt string

	cmd := &cobra.Command{
		Use:   "set-ai",
		Short: "Update generation settings (only provided flags change)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			settings, err := repo.GetAISettings(ctx, defaultUserID)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("max-iterations") {
				if maxIterations < 1 {
					return fmt.Errorf("max-iterations must be at least 1")
				}
				settings.MaxIterations = maxIterations
			}
			if cmd.Flags().Changed("min-score") {
				if minScore < 1 || minScore > 10 {
					return fmt.Errorf("min-score must be between 1 and 10")
				}
				settings.MinApprovalScore = minScore
			}
			if cmd.Flags().Changed("target-duration") {
				settings.TargetDurationSec = targetDuration
			}
			if cmd.Flags().Changed("auto-escalate") {
				settings.AutoEscalate = autoEscalate
			}
			if cmd.Flags().Changed("writer-prompt") {
				settings.ScriptwriterPrompt = writerPrompt
			}
			if cmd.Flags().Changed("editor-prompt") {
				settings.EditorPrompt = editorPrompt
			}

			if err := repo.SaveAISettings(ctx, settings); err != nil {
				return err
			}

			fmt.Println("AI settings updated. Running generations keep their snapshot; the change applies from the next iteration.")
			return nil
		},
	}

	cmd.Flags().IntVar(&maxIterations, "max-iterations", 3, "Maximum scriptwriter/editor rounds")
	cmd.Flags().IntVar(&minScore, "min-score", 7, "Minimum score for auto-approval (1-10)")
	cmd.Flags().IntVar(&targetDuration, "target-duration", 60, "Target video duration in seconds")
	cmd.Flags().BoolVar(&autoEscalate, "auto-escalate", false, "Route approved scripts to human review")
	cmd.Flags().StringVar(&writerPrompt, "writer-prompt", "", "Custom scriptwriter instruction fragment")
	cmd.Flags().StringVar(&editorPrompt, "editor-prompt", "", "Custom editor instruction fragment")

	return cmd
}

func settingsSetConveyorCmd() *cobra.Command {
	var enabled bool
	var dailyLimit int
	var monthlyBudget, minThreshold float64
	var avoided []string

	cmd := &cobra.Command{
		Use:   "set-conveyor",
		Short: "Update conveyor settings (only provided flags change)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			settings, err := repo.GetConveyorSettings(ctx, defaultUserID)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("enabled") {
				settings.Enabled = enabled
			}
			if cmd.Flags().Changed("daily-limit") {
				if dailyLimit < 0 {
					return fmt.Errorf("daily-limit must be non-negative")
				}
				settings.DailyLimit = dailyLimit
			}
			if cmd.Flags().Changed("monthly-budget") {
				if monthlyBudget < 0 {
					return fmt.Errorf("monthly-budget must be non-negative")
				}
				settings.MonthlyBudgetUSD = monthlyBudget
			}
			if cmd.Flags().Changed("min-threshold") {
				settings.MinScoreThreshold = minThreshold
			}
			if cmd.Flags().Changed("avoid") {
				settings.AvoidedTopics = avoided
			}

			if err := repo.SaveConveyorSettings(ctx, settings); err != nil {
				return err
			}

			fmt.Println("Conveyor settings updated.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", false, "Enable or disable the conveyor")
	cmd.Flags().IntVar(&dailyLimit, "daily-limit", 5, "Maximum items started per day")
	cmd.Flags().Float64Var(&monthlyBudget, "monthly-budget", 10, "Monthly spend ceiling in USD")
	cmd.Flags().Float64Var(&minThreshold, "min-threshold", 60, "Static minimum source score")
	cmd.Flags().StringSliceVar(&avoided, "avoid", nil, "Topics to dismiss during scoring")

	return cmd
}

// ============ WATCH COMMAND ============

func watchCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "watch [item-id]",
		Short: "Follow the live event stream for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid item ID: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := sse.NewClient(serverURL, log)

			fmt.Printf("Watching item %d (Ctrl-C to stop)...\n\n", itemID)

			err = client.Watch(ctx, uint(itemID), func(event *models.Event) {
				switch event.Type {
				case models.EventThinking:
					if text, ok := event.Data["thinking"].(string); ok {
						fmt.Print(text)
					}
				default:
					fmt.Printf("\n[%s] %s %s\n", event.Timestamp.Format("15:04:05"), event.Type, formatEventData(event.Data))
				}
			})
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Daemon base URL")
	return cmd
}
