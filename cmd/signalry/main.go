package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalry/signalry/internal/classify"
	"github.com/signalry/signalry/internal/config"
	"github.com/signalry/signalry/internal/database"
	"github.com/signalry/signalry/internal/ingest"
	"github.com/signalry/signalry/internal/llm"
	"github.com/signalry/signalry/internal/model"
	"github.com/signalry/signalry/internal/momentum"
	"github.com/signalry/signalry/internal/pipeline"
	"github.com/signalry/signalry/internal/report"
	"github.com/signalry/signalry/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "signalry",
	Short:   "Social signal triage",
	Long:    "Signalry pulls posts from configured sources, filters for real intent, classifies them, and queues the keepers for human review.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(discardCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(outcomesCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("signalry", version)
	},
}

// --- init command ---

var resetDB bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/signalry/",
	RunE: func(cmd *cobra.Command, args []string) error {
		if resetDB {
			if err := removeDatabase(); err != nil {
				return err
			}
		}

		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, tokens, and the classifier.")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&resetDB, "reset-db", false, "Delete the existing database before initializing")
}

// removeDatabase deletes the SQLite file and its WAL sidecars.
func removeDatabase() error {
	path, err := config.ResolveConfigPath(configPath)
	dbPath := ""
	if err == nil {
		c, lerr := config.Load(path)
		if lerr == nil {
			dbPath = c.DBPath()
		}
	}
	if dbPath == "" {
		dbPath = filepath.Join(config.DataDir(), "signalry.db")
	}

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	fmt.Printf("Removed database: %s\n", dbPath)
	return nil
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"stats"},
	Short:   "Show database and queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Signals:")
		fmt.Printf("  Total: %d\n", stats.TotalSignals)
		fmt.Printf("  Pending: %d\n", stats.Pending)
		fmt.Printf("  Approved: %d\n", stats.Approved)
		fmt.Printf("  Discarded: %d\n", stats.Discarded)
		fmt.Printf("  Momentum flagged: %d\n", stats.MomentumFlags)
		if len(stats.ByStage) > 0 {
			fmt.Println("\nBy intent stage:")
			for stage, n := range stats.ByStage {
				fmt.Printf("  %s: %d\n", stage, n)
			}
		}
		fmt.Println("\nScored items:", stats.ScoredItems)
		if stats.Outcomes.Total > 0 {
			fmt.Printf("\nOutcomes: %d logged, %d acted, %.0f%% action rate\n",
				stats.Outcomes.Total, stats.Outcomes.Acted, stats.Outcomes.ActionRate*100)
		}
		return nil
	},
}

// --- run command ---

var (
	sinceHours  int
	runKeywords []string
	runLimit    int
	runJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline: ingest -> filter -> classify -> momentum -> queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		registry, err := buildRegistry()
		if err != nil {
			return err
		}

		classifier, err := buildClassifier()
		if err != nil {
			return err
		}

		detector := momentum.NewDetector()
		if cfg.Momentum.WindowHours > 0 {
			detector.WindowHours = cfg.Momentum.WindowHours
		}
		if cfg.Momentum.MinClusterSize > 0 {
			detector.MinClusterSize = cfg.Momentum.MinClusterSize
		}
		if cfg.Momentum.ActorRepeatThreshold > 0 {
			detector.ActorRepeatThreshold = cfg.Momentum.ActorRepeatThreshold
		}

		var since time.Time
		if sinceHours > 0 {
			since = time.Now().Add(-time.Duration(sinceHours) * time.Hour)
		}

		keywords := runKeywords
		if len(keywords) == 0 {
			keywords = cfg.Keywords
		}

		pipe := pipeline.New(registry, classifier, detector, db)
		pipe.FetchLimit = runLimit
		result, err := pipe.Run(context.Background(), keywords, since)
		if err != nil {
			return err
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		c := result.Counts
		fmt.Println("Run complete:")
		fmt.Printf("  Ingested: %d\n", c.Ingested)
		fmt.Printf("  Filtered out: %d\n", c.Filtered)
		fmt.Printf("  Classified: %d (%d skipped)\n", c.Classified, c.Skipped)
		fmt.Printf("  Queued: %d new, %d duplicates\n", c.Queued, c.Duplicates)

		if len(result.Momentum) > 0 {
			fmt.Println("\nMomentum:")
			for _, cl := range result.Momentum {
				fmt.Printf("  %s: %d signals from %d actors\n", cl.Pain, cl.SignalCount, cl.UniqueActors)
			}
		}

		fmt.Println("\nReview the queue with 'signalry queue' or 'signalry serve'.")
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&sinceHours, "since", 0, "Only ingest posts from the last N hours (0 = no limit)")
	runCmd.Flags().StringSliceVar(&runKeywords, "keywords", nil, "Keywords to match against post text (overrides config)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Max signals per connector (0 = no cap)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the full run result as JSON")
}

func buildRegistry() (*ingest.Registry, error) {
	registry := ingest.NewRegistry()

	if cfg.Sources.Mock.Enabled {
		registry.AddPull(ingest.NewMockConnector(cfg.Sources.Mock.Path))
	}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]ingest.FeedSource, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = ingest.FeedSource{URL: f.URL, Name: f.Name}
		}
		registry.AddPull(ingest.NewFeedConnector(feeds))
	}

	if cfg.Sources.X.Enabled {
		xc, err := ingest.NewXConnector(cfg.Sources.X.Query, cfg.Sources.X.TokenEnv)
		if err != nil {
			return nil, err
		}
		registry.AddPull(xc)
	}

	if cfg.Sources.Telegram.Enabled {
		tc, err := ingest.NewTelegramConnector(cfg.Sources.Telegram.TokenEnv)
		if err != nil {
			return nil, err
		}
		registry.AddPush(tc)
	}

	return registry, nil
}

func buildClassifier() (classify.Classifier, error) {
	if cfg.Classifier.Mode != "live" {
		return classify.NewRuleClassifier(), nil
	}

	provider := llm.CreateProvider(
		cfg.Classifier.Provider,
		cfg.Classifier.Model,
		cfg.Classifier.OllamaURL,
		cfg.Classifier.OpenAIModel,
		cfg.Classifier.APIKeyEnv,
	)
	return classify.NewLiveClassifier(provider)
}

// --- listen command ---

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Stream signals from push sources (telegram) into the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		registry, err := buildRegistry()
		if err != nil {
			return err
		}

		classifier, err := buildClassifier()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Listening for live signals. Press Ctrl+C to stop.")
		pipe := pipeline.New(registry, classifier, momentum.NewDetector(), db)
		if err := pipe.Listen(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// --- queue command ---

var (
	queueStatus string
	queueLimit  int
	queueJSON   bool
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List review queue items",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var items []model.ReviewItem
		if queueStatus == "all" {
			items, err = db.ListAll(queueLimit)
		} else {
			items, err = db.ListByStatus(queueStatus, queueLimit)
		}
		if err != nil {
			return err
		}

		if queueJSON {
			return json.NewEncoder(os.Stdout).Encode(items)
		}

		if len(items) == 0 {
			fmt.Printf("No %s items.\n", queueStatus)
			return nil
		}

		for _, it := range items {
			printReviewItem(it)
		}
		return nil
	},
}

func init() {
	queueCmd.Flags().StringVar(&queueStatus, "status", model.StatusPending, "Filter by status (pending, approved, discarded, all)")
	queueCmd.Flags().IntVarP(&queueLimit, "limit", "n", 20, "Maximum items to show")
	queueCmd.Flags().BoolVar(&queueJSON, "json", false, "Output JSON")
}

func printReviewItem(it model.ReviewItem) {
	flag := ""
	if it.Classification.MomentumFlag {
		flag = " [momentum]"
	}
	fmt.Printf("%s  @%s  %s/%s%s  conf %.2f  (%s)\n",
		it.Signal.ID[:8], it.Signal.Actor,
		it.Classification.IntentStage, it.Classification.Urgency, flag,
		it.Classification.Confidence, it.Status)
	fmt.Printf("    %s\n", truncate(it.Signal.Text, 100))
	fmt.Printf("    pain: %s\n", it.Classification.PrimaryPain)
	if it.Classification.RecommendedAction != "" {
		fmt.Printf("    action: %s\n", it.Classification.RecommendedAction)
	}
	fmt.Println()
}

// --- approve / discard commands ---

var approveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve a pending item (accepts an ID prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return review(args[0], "approve")
	},
}

var discardCmd = &cobra.Command{
	Use:   "discard [id]",
	Short: "Discard a pending item (accepts an ID prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return review(args[0], "discard")
	},
}

func review(prefix, action string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.ResolveSignalID(prefix)
	if err != nil {
		return err
	}

	if action == "approve" {
		err = db.Approve(id)
	} else {
		err = db.Discard(id)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%sd %s\n", action, id[:8])
	return nil
}

// --- log command (outcomes) ---

var (
	outcomeResponded bool
	outcomeType      string
	outcomeNotes     string
)

var logCmd = &cobra.Command{
	Use:   "log [id]",
	Short: "Log what happened after a signal was actioned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.ResolveSignalID(args[0])
		if err != nil {
			return err
		}

		rt := model.ResponseType(outcomeType)
		if !rt.Valid() {
			return fmt.Errorf("invalid response type %q (want reply, follow_up, or none)", outcomeType)
		}

		err = db.LogOutcome(model.Outcome{
			SignalID:     id,
			Responded:    outcomeResponded,
			ResponseType: rt,
			Notes:        outcomeNotes,
			LoggedAt:     time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		fmt.Printf("Logged outcome for %s\n", id[:8])
		return nil
	},
}

func init() {
	logCmd.Flags().BoolVar(&outcomeResponded, "responded", false, "Whether a response was sent")
	logCmd.Flags().StringVar(&outcomeType, "type", "none", "Response type: reply, follow_up, none")
	logCmd.Flags().StringVar(&outcomeNotes, "notes", "", "Free-form notes")
}

// --- feedback command ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback [id] [positive|negative]",
	Short: "Rate a classification to tune the keyword rules",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.ResolveSignalID(args[0])
		if err != nil {
			return err
		}

		if err := db.UpsertFeedback(id, args[1]); err != nil {
			return err
		}

		fmt.Printf("Recorded %s feedback for %s\n", args[1], id[:8])
		return nil
	},
}

// --- outcomes command ---

var outcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Show outcome metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		m, err := db.Outcomes()
		if err != nil {
			return err
		}

		fmt.Printf("Outcomes: %d logged\n", m.Total)
		fmt.Printf("  Acted on: %d\n", m.Acted)
		fmt.Printf("  Skipped: %d\n", m.Skipped)
		fmt.Printf("  Action rate: %.0f%%\n", m.ActionRate*100)

		byStage, err := db.FeedbackByStage()
		if err == nil && len(byStage) > 0 {
			fmt.Println("\nFeedback by stage:")
			for stage, counts := range byStage {
				fmt.Printf("  %s: +%d / -%d\n", stage, counts.Positive, counts.Negative)
			}
		}
		return nil
	},
}

// --- score / top commands ---

var scoreCmd = &cobra.Command{
	Use:   "score [posts.json]",
	Short: "Score raw posts by priority and store the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := pipeline.ScoreFile(db, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Scored %d posts: %d stored, %d dropped\n",
			result.Loaded, result.Stored, result.Dropped)
		fmt.Println("View the ranking with 'signalry top'.")
		return nil
	},
}

var topCount int

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the highest-priority scored signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		text, err := report.BuildItems(db, topCount)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

func init() {
	topCmd.Flags().IntVarP(&topCount, "count", "n", 10, "Number of items to show")
}

// --- report command ---

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a markdown summary of the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		text, err := report.Build(db)
		if err != nil {
			return err
		}

		if reportOut == "" {
			fmt.Print(text)
			return nil
		}

		if err := os.WriteFile(reportOut, []byte(text), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Wrote report to %s\n", reportOut)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "output", "o", "", "Write to a file instead of stdout")
}

// --- export command ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full queue as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.ListAll(100000)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard and API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (defaults to config)")
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.DBPath())
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return s
}
