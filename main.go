package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/SCPrime/ai-Trader-sub001/config"
	"github.com/SCPrime/ai-Trader-sub001/internal/api"
	"github.com/SCPrime/ai-Trader-sub001/internal/auth"
	"github.com/SCPrime/ai-Trader-sub001/internal/database"
	"github.com/SCPrime/ai-Trader-sub001/internal/events"
	"github.com/SCPrime/ai-Trader-sub001/internal/executor"
	"github.com/SCPrime/ai-Trader-sub001/internal/logging"
	"github.com/SCPrime/ai-Trader-sub001/internal/news"
	"github.com/SCPrime/ai-Trader-sub001/internal/notify"
	"github.com/SCPrime/ai-Trader-sub001/internal/risk"
	"github.com/SCPrime/ai-Trader-sub001/internal/supervisor"
	"github.com/SCPrime/ai-Trader-sub001/internal/vault"
)

func main() {
	godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "generate-config" {
		if err := config.GenerateSampleConfig("config.json"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Sample configuration written to config.json")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig)
	logger.Info().Msg("Trade supervisor starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()

	// Risk manager with breaker state changes on the bus
	riskMgr := risk.NewManager(&risk.Config{
		CashReservePercent:   cfg.RiskConfig.CashReservePercent,
		MaxTradeValue:        cfg.RiskConfig.MaxTradeValue,
		MaxCollateral:        cfg.RiskConfig.MaxCollateral,
		MaxOpenPositions:     cfg.RiskConfig.MaxOpenPositions,
		MaxSymbolExposure:    cfg.RiskConfig.MaxSymbolExposure,
		MaxDailyLoss:         cfg.RiskConfig.MaxDailyLoss,
		MaxConsecutiveLosses: cfg.RiskConfig.MaxConsecutiveLosses,
		BreakerCooldownMins:  cfg.RiskConfig.BreakerCooldownMins,
	})
	riskMgr.Breaker().OnTrip(func(reason string) {
		bus.PublishBreaker(events.EventBreakerTripped, string(riskMgr.Breaker().State()), reason)
	})
	riskMgr.Breaker().OnReset(func() {
		bus.PublishBreaker(events.EventBreakerReset, string(riskMgr.Breaker().State()), "breaker reset")
	})

	paper := executor.NewPaper(cfg.PaperConfig.StartingCash, riskMgr,
		logging.WithComponent(logger, "executor"))

	// Vault for webhook URLs; degrades to in-memory when disabled
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize vault client")
	}
	if vaultClient.IsEnabled() {
		if err := vaultClient.Health(ctx); err != nil {
			logger.Warn().Err(err).Msg("Vault health check failed")
		}
	}

	// PostgreSQL audit trail
	var repo *database.Repository
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(cfg.DatabaseConfig, logging.WithComponent(logger, "database"))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		repo = database.NewRepository(db)
	} else {
		logger.Info().Msg("Database disabled, decisions will not be audited durably")
	}

	// Redis-backed pending queue with in-memory fallback
	store := database.NewRedisPendingStore(cfg.RedisConfig, logging.WithComponent(logger, "store"))

	// Notification dispatch
	var dispatcher *notify.Dispatcher
	if cfg.NotifyConfig.Enabled {
		var notifiers []notify.Notifier
		for _, ch := range cfg.NotifyConfig.Channels {
			url := vaultClient.WebhookURL(ctx, ch.Name, ch.WebhookURL)
			notifiers = append(notifiers, notify.NewWebhookNotifier(ch.Name, url, ch.Enabled))
		}
		dispatcher = notify.NewDispatcher(notify.Config{
			Enabled:          cfg.NotifyConfig.Enabled,
			BatchSize:        cfg.NotifyConfig.BatchSize,
			FlushInterval:    time.Duration(cfg.NotifyConfig.FlushIntervalS) * time.Second,
			RatePerMinute:    cfg.NotifyConfig.RatePerMinute,
			SymbolRatePerMin: cfg.NotifyConfig.SymbolRatePerMin,
			DedupeWindow:     time.Duration(cfg.NotifyConfig.DedupeWindowS) * time.Second,
			QueueSize:        cfg.NotifyConfig.QueueSize,
		}, notifiers, logging.WithComponent(logger, "notify"))
		dispatcher.AttachBus(bus)
		dispatcher.Start(ctx)
		logger.Info().Int("channels", len(notifiers)).Msg("Notification dispatcher started")
	}

	// Approval workflow
	mode, err := supervisor.ParseMode(cfg.SupervisorConfig.Mode)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid supervision mode")
	}

	var audit supervisor.AuditStore
	if repo != nil {
		audit = repo
	}

	sup := supervisor.New(supervisor.Config{
		Mode:          mode,
		PendingTTL:    time.Duration(cfg.SupervisorConfig.PendingTTLMins) * time.Minute,
		SweepInterval: time.Duration(cfg.SupervisorConfig.SweepIntervalS) * time.Second,
	}, riskMgr, paper, paper, store, audit, bus, logging.WithComponent(logger, "supervisor"))

	if err := sup.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore pending trades")
	}
	sup.Start(ctx)

	// News feed
	var newsFeed *news.Ingestor
	if cfg.NewsConfig.Enabled {
		newsFeed = news.NewIngestor(news.Config{
			PollInterval:        time.Duration(cfg.NewsConfig.PollIntervalSeconds) * time.Second,
			SimilarityThreshold: cfg.NewsConfig.SimilarityThreshold,
			Retention:           time.Duration(cfg.NewsConfig.RetentionMinutes) * time.Minute,
			Symbols:             cfg.NewsConfig.Symbols,
		}, news.NewMockProvider(), bus, logging.WithComponent(logger, "news"))
		newsFeed.Start(ctx)
		logger.Info().Strs("symbols", cfg.NewsConfig.Symbols).Msg("News feed started")
	}

	// Record fills and first-seen stories alongside the decision audit
	if repo != nil {
		bus.Subscribe(events.EventTradeExecuted, func(e events.Event) {
			tradeID, _ := e.Data["trade_id"].(string)
			symbol, _ := e.Data["symbol"].(string)
			side, _ := e.Data["side"].(string)
			quantity, _ := e.Data["quantity"].(int)
			notional, _ := e.Data["notional"].(float64)
			if err := repo.RecordExecution(context.Background(), tradeID, symbol, side, quantity, notional, e.Timestamp); err != nil {
				logger.Warn().Err(err).Msg("Failed to persist execution")
			}
		})
		bus.Subscribe(events.EventNewsStory, func(e events.Event) {
			id, _ := e.Data["story_id"].(string)
			symbol, _ := e.Data["symbol"].(string)
			headline, _ := e.Data["headline"].(string)
			provider, _ := e.Data["provider"].(string)
			duplicates, _ := e.Data["duplicates"].(int)
			if err := repo.SaveNewsStory(context.Background(), id, symbol, headline, provider, duplicates, e.Timestamp); err != nil {
				logger.Warn().Err(err).Msg("Failed to persist news story")
			}
		})
	}

	// Operator authentication
	var authService *auth.Service
	if cfg.AuthConfig.Enabled {
		if cfg.AuthConfig.JWTSecret == "" {
			logger.Fatal().Msg("AUTH_JWT_SECRET required when auth is enabled")
		}
		authService = auth.NewService(cfg.AuthConfig)
		logger.Info().Int("operators", len(cfg.AuthConfig.Operators)).Msg("Operator auth enabled")
	} else {
		logger.Warn().Msg("Auth disabled, API is open")
	}

	server := api.NewServer(cfg.ServerConfig, api.Deps{
		AuthService: authService,
		Supervisor:  sup,
		RiskManager: riskMgr,
		Paper:       paper,
		NewsFeed:    newsFeed,
		Dispatcher:  dispatcher,
		Repository:  repo,
		Store:       store,
		EventBus:    bus,
	}, logging.WithComponent(logger, "api"))

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}
	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("Redis close error")
	}
	if db != nil {
		db.Close()
	}

	logger.Info().Msg("Shutdown complete")
}
