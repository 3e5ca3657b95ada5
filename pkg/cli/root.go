package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/driftline/signal-engine/pkg/config"
	"github.com/driftline/signal-engine/pkg/database"
	"github.com/driftline/signal-engine/pkg/embeddings"
	"github.com/driftline/signal-engine/pkg/hubspot"
	"github.com/driftline/signal-engine/pkg/logging"
	"github.com/driftline/signal-engine/pkg/repositories"
	"github.com/driftline/signal-engine/pkg/services"
	"github.com/driftline/signal-engine/pkg/slack"
)

// app holds the wired dependencies shared by all commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *database.DB
	matcher   services.MatcherService
	syncer    services.SyncService
	matchRepo repositories.MatchRepository
}

var globalApp *app

var rootCmd = &cobra.Command{
	Use:   "signal-engine",
	Short: "Sync CRM entities into pgvector and match signals against them",
	Long: `signal-engine mirrors HubSpot companies and contacts into a pgvector
store and semantically matches incoming signals against them, writing
associations and an audit trail of every match decision.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
			return nil
		}
		a, err := newApp(cmd.Context(), cmd.Root().Version)
		if err != nil {
			return err
		}
		globalApp = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if globalApp != nil {
			globalApp.close()
			globalApp = nil
		}
		return nil
	},
}

func newApp(ctx context.Context, version string) (*app, error) {
	cfg, err := config.Load(version)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := migrateDatabase(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.NewConnection(connectCtx, &database.Config{
		URL: cfg.Database.ConnectionString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	crm, err := hubspot.NewClient(&hubspot.Config{
		AccessToken:            cfg.HubSpot.AccessToken,
		BaseURL:                cfg.HubSpot.BaseURL,
		SignalObjectType:       cfg.HubSpot.SignalObjectType,
		SignalObjectName:       cfg.HubSpot.SignalObjectName,
		CompanyAssociationType: cfg.HubSpot.CompanyAssociationType,
		ContactAssociationType: cfg.HubSpot.ContactAssociationType,
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create CRM client: %w", err)
	}

	embedder, err := embeddings.NewClient(&embeddings.Config{
		BaseURL:           cfg.OpenAI.BaseURL,
		APIKey:            cfg.OpenAI.APIKey,
		Model:             cfg.OpenAI.EmbeddingModel,
		Dimensions:        cfg.OpenAI.Dimensions,
		RequestsPerMinute: cfg.OpenAI.RequestsPerMinute,
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	companyRepo := repositories.NewCompanyRepository(db)
	contactRepo := repositories.NewContactRepository(db)
	matchRepo := repositories.NewMatchRepository(db)
	cursorRepo := repositories.NewCursorRepository(db)
	notifier := slack.NewNotifier(cfg.SlackWebhookURL, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		matchRepo: matchRepo,
		matcher: services.NewMatcherService(
			crm, embedder, companyRepo, contactRepo, matchRepo,
			notifier, cfg.Matching, logger),
		syncer: services.NewSyncService(
			crm, embedder, companyRepo, contactRepo, cursorRepo,
			cfg.Sync, logger),
	}, nil
}

func migrateDatabase(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// Execute runs the root command. The version is injected at build time.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}
