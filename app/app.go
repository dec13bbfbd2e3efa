package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"pricing-scenario-lab/api"
	"pricing-scenario-lab/cache"
	"pricing-scenario-lab/config"
	"pricing-scenario-lab/database"
	"pricing-scenario-lab/feed"
	"pricing-scenario-lab/notifications"
	"pricing-scenario-lab/realtime"
)

// App represents the main application
type App struct {
	config    *config.Config
	policyCfg *config.PolicyConfig

	db             *database.Database
	rawDB          *database.DB
	redis          *cache.RedisClient
	repo           *database.PricingRepository
	webhookManager *notifications.WebhookManager
	broker         *realtime.Broker
	runner         *PipelineRunner
	feedClient     *feed.Client
}

// New creates a new application instance. The policy document is loaded and
// validated here so a bad config fails before any connection is opened.
func New(cfg *config.Config) (*App, error) {
	policyCfg, err := config.LoadPolicyConfig(cfg.PolicyConfigPath)
	if err != nil {
		return nil, fmt.Errorf("policy config: %w", err)
	}

	return &App{
		config:    cfg,
		policyCfg: policyCfg,
	}, nil
}

// Start starts the application
func (a *App) Start() error {
	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Database Connection
	fmt.Println("🗄️  Connecting to database...")

	dbPort, err := strconv.Atoi(a.config.DatabasePort)
	if err != nil {
		return fmt.Errorf("invalid database port: %w", err)
	}

	db, err := database.Connect(
		a.config.DatabaseHost,
		dbPort,
		a.config.DatabaseName,
		a.config.DatabaseUser,
		a.config.DatabasePassword,
	)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	rawDB, err := database.NewConnection(database.ConnConfig{
		Host:     a.config.DatabaseHost,
		Port:     a.config.DatabasePort,
		User:     a.config.DatabaseUser,
		Password: a.config.DatabasePassword,
		DBName:   a.config.DatabaseName,
	})
	if err != nil {
		return fmt.Errorf("raw database connection failed: %w", err)
	}
	a.rawDB = rawDB

	// 2. Redis Connection
	fmt.Println("🧠 Connecting to Redis...")
	redisClient := cache.NewRedisClient(
		a.config.RedisHost,
		a.config.RedisPort,
		a.config.RedisPassword,
	)

	if redisClient == nil {
		fmt.Println("⚠️  Redis connection failed. Caching disabled.")
	} else {
		a.redis = redisClient
	}

	// Initialize schema
	a.repo = database.NewPricingRepository(a.db, a.rawDB)
	if err := a.repo.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// Initialize Webhook Manager
	a.webhookManager = notifications.NewWebhookManager(a.config.WebhookURLs)

	// Initialize Realtime Broker
	a.broker = realtime.NewBroker()
	go a.broker.Run()

	// 3. Pipeline Runner
	a.runner = NewPipelineRunner(a.repo, a.policyCfg, a.redis, a.broker, a.webhookManager)

	// 4. Forecast Feed (optional)
	if a.config.Feed.Enabled {
		a.feedClient = feed.NewClient(a.config.Feed.URL, a.config.Feed.Token, a.repo)
		if err := a.feedClient.Connect(); err != nil {
			return fmt.Errorf("forecast feed connection failed: %w", err)
		}
		a.feedClient.StartPing(ctx, 25*time.Second)
		go a.feedClient.Run(ctx)
		log.Println("✅ Forecast feed connected")
	} else {
		log.Println("ℹ️  Forecast feed DISABLED, facts must be loaded out of band")
	}

	// 5. Start API Server
	apiServer := api.NewServer(a.repo, a.redis, a.broker)
	apiServer.SetPipelineTrigger(a.runner)

	go func() {
		if err := apiServer.Start(a.config.APIPort); err != nil {
			log.Printf("⚠️  API Server failed: %v", err)
		}
	}()

	// 6. Optional evaluation run on startup
	if a.config.RunOnStart {
		go func() {
			if _, err := a.runner.Run(ctx); err != nil {
				log.Printf("❌ Startup run failed: %v", err)
			}
		}()
	}

	// 7. Wait for interrupt and perform graceful shutdown
	return a.gracefulShutdown(cancel)
}

// gracefulShutdown handles graceful shutdown with timeout
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	// Setup signal handling
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	// Wait for interrupt signal
	<-interrupt
	fmt.Println("\n🛑 Shutdown signal received, initiating graceful shutdown...")

	// Cancel context to stop all goroutines
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		if a.feedClient != nil {
			fmt.Println("📡 Closing forecast feed connection...")
			if err := a.feedClient.Close(); err != nil {
				log.Printf("Error closing forecast feed: %v", err)
			}
		}

		if a.rawDB != nil {
			if err := a.rawDB.Close(); err != nil {
				log.Printf("Error closing raw database: %v", err)
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				log.Printf("Error closing database: %v", err)
			} else {
				fmt.Println("✅ Database connection closed")
			}
		}

		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				log.Printf("Error closing redis: %v", err)
			} else {
				fmt.Println("✅ Redis connection closed")
			}
		}

		close(shutdownComplete)
	}()

	// Wait for shutdown to complete or timeout
	select {
	case <-shutdownComplete:
		fmt.Println("✅ Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		fmt.Println("⚠️  Shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}
