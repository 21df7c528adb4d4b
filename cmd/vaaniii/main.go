package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xaenox/vaaniii/internal/assistant"
	"github.com/xaenox/vaaniii/internal/bot"
	"github.com/xaenox/vaaniii/internal/chat"
	"github.com/xaenox/vaaniii/internal/kv"
	"github.com/xaenox/vaaniii/internal/models"
	"github.com/xaenox/vaaniii/internal/session"
	"github.com/xaenox/vaaniii/internal/storage"
	"github.com/xaenox/vaaniii/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.Storage, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	records := storage.New(store, logger, storage.WithHistoryLimit(cfg.Storage.HistoryLimit))
	if migrated, err := records.Migrate(ctx); err != nil {
		logger.Error("Storage migration failed", zap.Error(err))
	} else if migrated {
		logger.Info("Storage migrated", zap.Int("version", models.CurrentVersion))
	}

	memory := session.LoadMemory(ctx, records, logger, models.ContextMemory{Creator: cfg.Assistant.Creator})

	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize assistant", zap.Error(err))
	}

	engine := chat.New(records, provider, memory, logger,
		chat.WithLanguage(cfg.Assistant.Language),
		chat.WithXPPerMessage(cfg.Assistant.XPPerMessage))

	b, err := bot.New(bot.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout,
		Debug:       cfg.Telegram.Debug,
	}, engine, records, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	if err := b.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Shutting down")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func openStore(cfg config.StorageConfig, db config.DatabaseConfig, logger *zap.Logger) (kv.Store, error) {
	primary, err := kv.OpenBounded(afero.NewOsFs(), cfg.SnapshotPath, int64(cfg.QuotaBytes))
	if err != nil {
		return nil, err
	}

	var secondary kv.Store
	if cfg.Secondary == config.SecondaryPostgres {
		logger.Info("Using PostgreSQL secondary tier")
		secondary, err = kv.NewPostgres(kv.DatabaseConfig{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			DBName:   db.DBName,
			SSLMode:  db.SSLMode,
		}, logger)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("Using in-memory secondary tier")
		secondary = kv.NewArchive()
	}

	return kv.NewFallback(primary, secondary, logger, kv.WithReadThrough(cfg.ReadThrough)), nil
}

// newProvider picks the configured assistant. A provider without an API key
// degrades to offline replies.
func newProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (assistant.Provider, error) {
	var p assistant.Provider
	switch cfg.Assistant.Provider {
	case config.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			logger.Warn("No Gemini API key configured, using offline replies")
			return assistant.NewOffline(0), nil
		}
		g, err := assistant.NewGemini(ctx, assistant.GeminiConfig{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			FastModel:   cfg.Gemini.FastModel,
			MaxTokens:   cfg.Gemini.MaxTokens,
			Temperature: cfg.Gemini.Temperature,
		}, logger)
		if err != nil {
			return nil, err
		}
		p = g
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			logger.Warn("No OpenAI API key configured, using offline replies")
			return assistant.NewOffline(0), nil
		}
		p = assistant.NewOpenAI(assistant.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		}, logger)
	default:
		return assistant.NewOffline(0), nil
	}

	if cfg.Assistant.Retry {
		p = assistant.NewRetrying(p, nil, logger)
	}
	return p, nil
}
