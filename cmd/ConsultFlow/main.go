package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modubiz/ConsultFlow/internal/api"
	"github.com/modubiz/ConsultFlow/internal/flow"
	"github.com/modubiz/ConsultFlow/internal/genai"
	"github.com/modubiz/ConsultFlow/internal/lockfile"
	"github.com/modubiz/ConsultFlow/internal/scheduler"
	"github.com/modubiz/ConsultFlow/internal/store"
	"github.com/modubiz/ConsultFlow/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ConsultFlow state data
	DefaultStateDir = "/var/lib/consultflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "consultflow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// The SQLite store does not tolerate concurrent writers, so hold an
	// exclusive lock on the state directory while using a file database.
	if !*flags.memory && *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.Acquire(filepath.Dir(*flags.dbDSN))
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddRetentionSweep(*flags.retentionCron, st, *flags.retentionDays); err != nil {
		slog.Error("Failed to schedule retention sweep", "error", err)
		os.Exit(1)
	}

	client := buildGenAIClient(flags)

	marketing := flow.NewMarketingEngine(st, client)
	defer marketing.Close()
	mental := flow.NewMentalHealthEngine(st, client)
	defer mental.Close()

	server := api.NewServer(marketing, mental, st, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ConsultFlow", "api_addr", *flags.apiAddr, "dsn_set", *flags.dbDSN != "", "genai_enabled", client != nil)
	if err := server.Run(ctx); err != nil {
		slog.Error("ConsultFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ConsultFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	OpenAIKey     string
	Model         string
	APIAddr       string
	RetentionCron string
}

// Flags holds command line flag values
type Flags struct {
	dbDSN         *string
	openaiKey     *string
	model         *string
	apiAddr       *string
	memory        *bool
	retentionCron *string
	retentionDays *int
}

// initializeLogger sets up structured logging; CONSULTFLOW_DEBUG enables debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("CONSULTFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      util.GetEnv("CONSULTFLOW_STATE_DIR", DefaultStateDir),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		Model:         os.Getenv("OPENAI_MODEL"),
		APIAddr:       os.Getenv("API_ADDR"),
		RetentionCron: util.GetEnv("RETENTION_SCHEDULE", scheduler.DefaultRetentionCron),
	}

	// Default to SQLite in the state directory when no database URL is set.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CONSULTFLOW_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.Model,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN, a PostgreSQL URL or SQLite file path (overrides $DATABASE_URL)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:     flag.String("openai-model", config.Model, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		memory:    flag.Bool("memory-store", false, "use the in-memory store instead of a database"),
		retentionCron: flag.String("retention-cron", config.RetentionCron,
			"cron schedule for the message retention sweep (overrides $RETENTION_SCHEDULE)"),
		retentionDays: flag.Int("retention-days", scheduler.DefaultRetentionDays,
			"number of days to keep conversation messages"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"model", *flags.model,
		"apiAddr", *flags.apiAddr,
		"memory", *flags.memory,
		"retentionCron", *flags.retentionCron,
		"retentionDays", *flags.retentionDays)

	return flags
}

// buildStore selects and initializes a storage backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.memory || *flags.dbDSN == "" {
		slog.Info("buildStore: using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Info("buildStore: using PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Info("buildStore: using SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildGenAIClient initializes the OpenAI client. A missing key is tolerated;
// the engines fall back to rule-based behavior without a client.
func buildGenAIClient(flags Flags) genai.ClientInterface {
	if *flags.openaiKey == "" {
		slog.Warn("buildGenAIClient: no OpenAI API key configured, running with rule-based fallbacks only")
		return nil
	}
	var opts []genai.Option
	if *flags.model != "" {
		opts = append(opts, genai.WithModel(*flags.model))
	}
	client, err := genai.NewClient(*flags.openaiKey, opts...)
	if err != nil {
		slog.Error("buildGenAIClient: client initialization failed, continuing without GenAI", "error", err)
		return nil
	}
	return client
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
