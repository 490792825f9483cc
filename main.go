package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/agents"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/database"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/handlers"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/history"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/llm"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/logging"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/repositories"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/services"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/workflows"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("database", cfg.Database.Host),
		zap.String("redis", cfg.Redis.Host),
		zap.String("llm_provider", cfg.LLM.Provider))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(&cfg.Database, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	var historyStore history.Store
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		historyStore = history.NewRedisStore(redisClient, logger)
	} else {
		logger.Warn("redis not configured, message history is in-memory only")
		historyStore = history.NewMemoryStore()
	}

	llmClient, err := llm.NewClient(&cfg.LLM, logger)
	if err != nil {
		logger.Fatal("failed to build llm client", zap.Error(err))
	}

	connectionRepo := repositories.NewConnectionRepository(db)
	userFileRepo := repositories.NewUserFileRepository(db)

	connectionService := services.NewConnectionService(connectionRepo, &cfg.Datasource, logger)

	contextAgent := agents.NewContextAgent(llmClient, historyStore, userFileRepo, &cfg.LLM, logger)
	sqlAgent := agents.NewSQLAgent(llmClient, historyStore, contextAgent, &cfg.LLM, logger)

	generateWorkflow := workflows.NewGenerateWorkflow(connectionService, contextAgent, sqlAgent, &cfg.Workflow, logger)
	executeWorkflow := workflows.NewExecuteWorkflow(connectionService, &cfg.Workflow, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewConnectionHandler(connectionService, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(generateWorkflow, executeWorkflow, logger).RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("starting sqlpilot-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// runMigrations applies pending schema migrations through database/sql,
// which golang-migrate requires.
func runMigrations(cfg *config.DatabaseConfig, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, "migrations", logger)
}
