package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chargeslot/booking-backend/internal/config"
	"github.com/chargeslot/booking-backend/internal/database"
	"github.com/chargeslot/booking-backend/internal/handlers"
	"github.com/chargeslot/booking-backend/internal/logging"
	"github.com/chargeslot/booking-backend/internal/middleware"
	"github.com/chargeslot/booking-backend/internal/services"
	"github.com/chargeslot/booking-backend/pkg/jwt"
	"github.com/chargeslot/booking-backend/pkg/mq"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// stores bundles the persistence implementations selected by BOOKING_STORE
type stores struct {
	bookings  services.BookingStore
	payments  services.PaymentStore
	directory services.Directory
	audits    services.PaymentAuditor
	pinger    database.Pinger
	close     func()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Server)
	logger.Info("Starting ChargeSlot booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open stores: %v", err)
	}
	defer st.close()

	// Redis is optional; without it locks and rate limits are per process
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connection established")
	}

	var locker services.Locker = services.NewLocalLocker()
	if redisClient != nil {
		locker = services.NewRedisLocker(redisClient, cfg.Booking.LockTTL, logger)
	}

	var events services.EventPublisher = services.NewLogEventPublisher(logger)
	if cfg.Broker.URL != "" {
		publisher, err := mq.NewPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			logger.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		events = services.NewBrokerEventPublisher(publisher)
		logger.WithField("exchange", cfg.Broker.Exchange).Info("Publishing lifecycle events to RabbitMQ")
	}

	var gateway services.PaymentGateway
	switch cfg.Payment.Mode {
	case "razorpay":
		gateway = services.NewRazorpayGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.Currency, logger)
	default:
		gateway = services.NewSimulatedGateway(cfg.Payment.SimulatedWait, logger)
	}
	logger.WithField("mode", cfg.Payment.Mode).Info("Payment gateway configured")

	clock := services.SystemClock{}
	lifecycleConfig := services.DefaultLifecycleConfig()
	lifecycleConfig.GatewayTimeout = cfg.Payment.Timeout

	lifecycle := services.NewBookingLifecycleService(
		st.bookings,
		st.payments,
		st.directory,
		services.NewRoleGate(),
		gateway,
		locker,
		events,
		services.NewAuditService(st.audits, logger),
		clock,
		lifecycleConfig,
		logger,
	)

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	var limit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		rate, err := middleware.ParseRate(cfg.RateLimit.Rate)
		if err != nil {
			logger.Fatalf("Invalid RATE_LIMIT_RATE: %v", err)
		}
		store, err := middleware.NewRateLimitStore(redisClient, "booking_api", rate.Period)
		if err != nil {
			logger.Fatalf("Failed to create rate limit store: %v", err)
		}
		limit = middleware.RateLimiter(store, rate, logger)
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, handlers.Handlers{
		Bookings: handlers.NewBookingHandler(lifecycle, clock, logger),
		Payments: handlers.NewPaymentHandler(lifecycle, logger),
		Owner:    handlers.NewOwnerHandler(lifecycle, clock, logger),
		Health:   handlers.NewHealthHandler(st.pinger, version),
	}, middleware.AuthMiddleware(jwtService, logger), limit)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("Server stopped with error: %v", err)
	}
	logger.Info("Server exited")
}

// openStores connects the configured persistence backend
func openStores(cfg *config.Config, logger *logrus.Logger) (*stores, error) {
	if cfg.Booking.Store == "memory" {
		logger.Warn("Using the in-memory store; data is lost on restart")
		mem := database.NewMemoryStore()
		seedDemoData(mem, logger)
		return &stores{
			bookings:  mem,
			payments:  mem,
			directory: mem,
			audits:    mem,
			close:     func() {},
		}, nil
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.WithField("driver", cfg.Database.Driver).Info("Database connection established")

	return &stores{
		bookings:  database.NewBookingRepository(db),
		payments:  database.NewPaymentRepository(db),
		directory: database.NewDirectoryRepository(db),
		audits:    database.NewPaymentAuditRepository(db, logger),
		pinger:    db,
		close:     func() { db.Close() },
	}, nil
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
