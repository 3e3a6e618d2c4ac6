package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"minuteride/internal/app"
	"minuteride/internal/changefeed"
	"minuteride/internal/config"
	"minuteride/internal/domain"
	"minuteride/internal/events"
	"minuteride/internal/fare"
	"minuteride/internal/handler"
	"minuteride/internal/logging"
	"minuteride/internal/notify"
	internalRedis "minuteride/internal/redis"
	"minuteride/internal/repository/postgres"
	"minuteride/internal/service"
	ws "minuteride/internal/websocket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	// Load configuration.
	cfg := config.Load()
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	if cfg.Migrate {
		if err := app.Migrate(ctx, db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("database schema up to date")
	}

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wire dependencies.
	srv := wireServer(runCtx, db, redisClient, nrApp, cfg, logger)
	defer srv.publisher.Close()

	go srv.hub.Run(runCtx)

	if srv.feed != nil {
		defer srv.feed.Close()
		go srv.feed.Run(runCtx)
	}

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	// Graceful shutdown.
	<-runCtx.Done()
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := srv.notifications.Wait(shutdownCtx); err != nil {
		logger.Warn("pending driver notifications abandoned", "error", err)
	}

	logger.Info("server exited")
}

type server struct {
	http          *http.Server
	hub           *ws.Hub
	feed          *changefeed.PostgresFeed
	notifications *service.NotificationService
	publisher     events.Publisher
}

// wireServer wires all dependencies and returns the HTTP server with its background workers.
func wireServer(ctx context.Context, db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, logger *slog.Logger) *server {
	// Initialize Redis stores.
	sessionStore := internalRedis.NewSessionStore(redisClient)
	locationStore := internalRedis.NewLocationStore(redisClient)

	// Initialize repositories.
	jobRepo := postgres.NewJobRepository(db)
	driverDir := postgres.NewDriverRepository(db)

	// Job events.
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("publishing job events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// Driver notifications.
	var sms service.SMSSender
	if cfg.Twilio.Complete() {
		sms = notify.NewTwilioSender(cfg.Twilio)
	} else {
		logger.Warn("Twilio not configured, new job SMS disabled")
	}
	notifications := service.NewNotificationService(driverDir, sms, cfg.Twilio, logger)
	notifications.RegisterPusher(domain.PushProviderExpo, notify.NewExpoPusher(cfg.Push.ExpoURL))
	if fcm := newFCMPusher(ctx, cfg.Push, logger); fcm != nil {
		notifications.RegisterPusher(domain.PushProviderFCM, fcm)
	}

	// Initialize services.
	dispatchService := service.NewDispatchService(jobRepo, driverDir, notifications, publisher, logger)
	tripService := service.NewTripService(jobRepo, sessionStore, locationStore, publisher, service.TripConfig{
		Rates: fare.Rates{PerMinute: cfg.Fare.RatePerMinute, PayoutFraction: cfg.Fare.PayoutFraction},
	}, logger)

	// Live job board.
	hub := ws.NewHub(func(ctx context.Context, actor domain.Actor) (any, error) {
		jobs, err := dispatchService.ListJobs(ctx, actor)
		if err != nil {
			return nil, err
		}
		return handler.NewJobListResponse(jobs), nil
	}, logger)

	var feed *changefeed.PostgresFeed
	if cfg.ChangeFeed.Enabled {
		var err error
		feed, err = changefeed.NewPostgresFeed(cfg.Database.DSN(), cfg.ChangeFeed.Channel,
			cfg.ChangeFeed.MinReconnectInterval, cfg.ChangeFeed.MaxReconnectInterval, logger)
		if err != nil {
			logger.Warn("job change feed unavailable, live refresh and push disabled", "error", err)
			feed = nil
		} else {
			feed.Subscribe(hub.HandleJobChange)
			feed.Subscribe(notifications.HandleJobChange)
		}
	}

	// Initialize handlers.
	jobHandler := handler.NewJobHandler(dispatchService)
	tripHandler := handler.NewTripHandler(tripService)
	driverHandler := handler.NewDriverHandler(dispatchService, locationStore)
	notifyHandler := handler.NewNotifyHandler(notifications)
	streamHandler := handler.NewStreamHandler(hub)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		JobHandler:    jobHandler,
		TripHandler:   tripHandler,
		DriverHandler: driverHandler,
		NotifyHandler: notifyHandler,
		StreamHandler: streamHandler,
		JWTSecret:     cfg.Auth.JWTSecret,
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
		Logger:        logger,
	})

	// Create HTTP server.
	return &server{
		http: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		hub:           hub,
		feed:          feed,
		notifications: notifications,
		publisher:     publisher,
	}
}

func newFCMPusher(ctx context.Context, cfg config.PushConfig, logger *slog.Logger) *notify.FCMPusher {
	var (
		p   *notify.FCMPusher
		err error
	)
	switch {
	case cfg.FirebaseCredentialsBase64 != "":
		p, err = notify.NewFCMPusherFromBase64(ctx, cfg.FirebaseCredentialsBase64)
	case cfg.FirebaseCredentialsFile != "":
		p, err = notify.NewFCMPusher(ctx, cfg.FirebaseCredentialsFile)
	default:
		return nil
	}
	if err != nil {
		logger.Warn("FCM push disabled", "error", err)
		return nil
	}
	return p
}
