package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"engage/internal/automation"
	"engage/internal/channels"
	"engage/internal/config"
	"engage/internal/handlers"
	"engage/internal/middleware"
	"engage/internal/models"
	"engage/internal/observability"
	"engage/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()

	var (
		flagDSN string
		srvHost string
		srvPort int
	)
	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(os.Stdout)
	flagSet.StringVar(&flagDSN, "dsn", os.Getenv("DB_DSN"), "Postgres DSN, if set overrides config database settings")
	flagSet.StringVar(&srvHost, "host", getenvDefault("ENGAGE_HOST", cfg.Server.Host), "server host (listen)")
	flagSet.IntVar(&srvPort, "port", cfg.Server.Port, "server port (listen)")
	_ = flagSet.Parse(os.Args[1:])

	dsn := flagDSN
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			cfg.Database.Host, cfg.Database.User, cfg.Database.Password,
			cfg.Database.Name, cfg.Database.Port, getenvDefault("DB_SSLMODE", "disable"))
	}

	if err := config.InitLogger(cfg); err != nil {
		logrus.Warnf("init logger: %v", err)
	}
	appLogger := logrus.StandardLogger()

	shutdownOTel, err := observability.SetupTracing(context.Background(), cfg)
	if err != nil {
		appLogger.Warnf("init tracing: %v", err)
	} else {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		appLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.Monitoring.Tracing.Enabled {
		_ = db.Use(gormtracing.NewPlugin())
	}

	if err := db.AutoMigrate(
		&models.Workspace{}, &models.InboundMessage{},
		&models.AutomationRule{}, &models.ExecutionRecord{}, &models.EmailJob{},
	); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	st := store.New(db, appLogger)

	sender := channels.NewClient(&channels.Config{
		BaseURL:    cfg.Channels.BaseURL,
		APIKey:     cfg.Channels.APIKey,
		Timeout:    cfg.Channels.Timeout,
		MaxRetries: cfg.Channels.MaxRetries,
	}, appLogger)

	webhookClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	dispatcher := automation.NewDispatcher(sender, st, st, webhookClient, automation.DispatcherConfig{
		WebhookTimeout:  cfg.Webhook.Timeout,
		DefaultRetries:  cfg.Webhook.DefaultRetries,
		BackoffBase:     cfg.Webhook.BackoffBase,
		SignatureHeader: cfg.Webhook.SignatureHeader,
		MaxResponseLog:  cfg.Webhook.MaxResponseLog,
	}, appLogger)

	coordinator := automation.NewCoordinator(
		st,
		automation.NewEvaluator(appLogger),
		automation.NewGuard(st, appLogger),
		dispatcher,
		automation.NewAuditLogger(st, appLogger),
		appLogger,
	)

	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimitMiddleware(cfg))
	if cfg.Monitoring.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Monitoring.Tracing.ServiceName))
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	api := r.Group("/api")
	handlers.RegisterEventRoutes(api, handlers.NewEventHandler(coordinator, st, appLogger))
	handlers.RegisterRuleRoutes(api, handlers.NewRuleHandler(st))

	addr := fmt.Sprintf("%s:%d", srvHost, srvPort)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		appLogger.Infof("engage server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Errorf("server shutdown: %v", err)
	}
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
