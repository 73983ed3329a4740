package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/handler"
	"github.com/vhvplatform/go-notification-engine/internal/middleware"
	"github.com/vhvplatform/go-notification-engine/internal/renderer"
	"github.com/vhvplatform/go-notification-engine/internal/repository"
	"github.com/vhvplatform/go-notification-engine/internal/scheduler"
	"github.com/vhvplatform/go-notification-engine/internal/service"
	"github.com/vhvplatform/go-notification-engine/internal/shared/config"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
	"github.com/vhvplatform/go-notification-engine/internal/shared/rabbitmq"
	"github.com/vhvplatform/go-notification-engine/internal/shared/redis"
	"github.com/vhvplatform/go-notification-engine/internal/smtp"
	"github.com/vhvplatform/go-notification-engine/internal/trigger"
	"github.com/vhvplatform/go-notification-engine/internal/webhook"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger().Fatal("Failed to load configuration", "error", err)
	}

	// Initialize logger
	log := logger.NewLoggerWithLevel(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	log.Info("Starting Notification Engine...")

	// Initialize MongoDB
	mongoClient, err := mongodb.NewMongoClient(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// Initialize repositories
	paramDefaults := domain.ParamDefaults{
		AnnualFeeAmount: cfg.Engine.DefaultAnnualFeeAmount,
		UnitRate:        cfg.Engine.DefaultUnitRate,
	}
	customerRepo := repository.NewCustomerRepository(mongoClient)
	configRepo := repository.NewConfigRepository(mongoClient, paramDefaults)
	templateRepo := repository.NewTemplateRepository(mongoClient, cfg.Engine.TemplateCacheTTL)
	historyRepo := repository.NewHistoryRepository(mongoClient)

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	for name, ensure := range map[string]func(context.Context) error{
		"notification_configs":   configRepo.EnsureIndexes,
		"notification_templates": templateRepo.EnsureIndexes,
		"notification_history":   historyRepo.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			log.Warn("Failed to ensure indexes", "collection", name, "error", err)
		}
	}
	cancelIndexes()

	// Initialize transport
	var transport service.Transport
	switch cfg.Email.Provider {
	case "ses":
		sesClient, err := service.NewSESClient(context.Background(), cfg.SES.Region)
		if err != nil {
			log.Fatal("Failed to initialize SES client", "error", err)
		}
		transport = service.NewSESTransport(sesClient)
	default:
		pool := smtp.NewPool(smtp.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			UseTLS:   cfg.SMTP.UseTLS,
			Timeout:  cfg.Engine.DispatchTimeout,
		}, cfg.SMTP.PoolSize)
		defer pool.Close()
		transport = service.NewSMTPTransport(pool, cfg.Email.FromEmail)
	}
	log.Info("Email transport ready", "provider", cfg.Email.Provider)

	// Initialize engine
	calendar := trigger.NewCalendar(cfg.Engine.TimezoneOffsetHours)
	layout, err := renderer.NewLayout(renderer.Branding{
		CompanyName:  cfg.Branding.CompanyName,
		FooterText:   cfg.Branding.FooterText,
		PrimaryColor: cfg.Branding.PrimaryColor,
	})
	if err != nil {
		log.Fatal("Failed to build email layout", "error", err)
	}

	deps := service.EngineDeps{
		Store:     mongoClient,
		Customers: customerRepo,
		Configs:   configRepo,
		Templates: templateRepo,
		Evaluators: trigger.NewEvaluators(trigger.Options{
			Calendar:    calendar,
			Formatter:   trigger.NewFormatter(cfg.Engine.Locale),
			CompanyName: cfg.Branding.CompanyName,
		}),
		Guard: service.NewDedupGuard(historyRepo, calendar),
		Dispatcher: service.NewDispatcher(transport, service.DispatcherConfig{
			FromEmail:     cfg.Email.FromEmail,
			FromName:      cfg.Email.FromName,
			Timeout:       cfg.Engine.DispatchTimeout,
			RatePerSecond: cfg.Engine.DispatchRatePerSecond,
			Burst:         cfg.Engine.DispatchBurst,
		}),
		Recorder: service.NewHistoryRecorder(historyRepo),
		Layout:   layout,
	}

	// Optional run lock
	if cfg.Redis.Address != "" {
		redisClient := redis.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		defer redisClient.Close()
		deps.Lock = redis.NewRunLock(redisClient, redis.DefaultRunLockKey, cfg.Engine.RunLockTTL)
		log.Info("Run lock enabled", "redis", cfg.Redis.Address)
	}

	// Optional run events
	if cfg.RabbitMQ.URL != "" {
		rabbitMQClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		defer rabbitMQClient.Close()
		if err := rabbitMQClient.DeclareExchange(cfg.RabbitMQ.Exchange, "topic"); err != nil {
			log.Fatal("Failed to declare exchange", "error", err, "exchange", cfg.RabbitMQ.Exchange)
		}
		deps.Publisher = rabbitmq.NewRunEventPublisher(rabbitMQClient, cfg.RabbitMQ.Exchange)
	}

	engine := service.NewEngine(deps, service.EngineOptions{
		Concurrency: cfg.Engine.CandidateConcurrency,
	}, log)

	// Initialize Scheduler
	if cfg.Scheduler.Enabled {
		runScheduler := scheduler.NewRunScheduler(engine, cfg.Scheduler.Schedule, calendar.Location(), log)
		if err := runScheduler.Start(); err != nil {
			log.Fatal("Failed to start scheduler", "error", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
			defer cancel()
			runScheduler.Stop(ctx)
		}()
	}

	// Initialize HTTP handlers
	runHandler := handler.NewRunHandler(engine, log)
	historyHandler := handler.NewHistoryHandler(historyRepo, log)
	templateHandler := handler.NewTemplateHandler(templateRepo)
	healthHandler := handler.NewHealthHandler(mongoClient)
	bounceHandler := webhook.NewBounceHandler(historyRepo, log)

	// Initialize rate limiter
	rateLimiter := middleware.NewClientRateLimiter(cfg.Server.TriggerRPS, cfg.Server.TriggerBurst)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoints
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Run trigger
	router.POST("/run", middleware.RateLimitMiddleware(rateLimiter), runHandler.Run)

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/history", historyHandler.ListHistory)
		v1.POST("/templates/variables", templateHandler.Variables)
		v1.POST("/templates/:type/refresh", templateHandler.Refresh)
	}

	// Webhooks (no rate limiting for external providers)
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/ses", bounceHandler.HandleSESWebhook)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Notification Engine started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Notification Engine...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Notification Engine stopped")
}
