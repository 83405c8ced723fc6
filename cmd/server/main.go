package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schoolhub/booking-backend/internal/cache"
	"github.com/schoolhub/booking-backend/internal/config"
	"github.com/schoolhub/booking-backend/internal/database"
	"github.com/schoolhub/booking-backend/internal/handlers"
	"github.com/schoolhub/booking-backend/internal/metrics"
	"github.com/schoolhub/booking-backend/internal/middleware"
	"github.com/schoolhub/booking-backend/internal/services"
	"github.com/schoolhub/booking-backend/pkg/events"
	"github.com/schoolhub/booking-backend/pkg/jwt"
	"github.com/schoolhub/booking-backend/pkg/payment"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// stores bundles the persistence ports chosen by STORAGE_DRIVER
type stores struct {
	resources services.ResourceStore
	bookings  services.BookingStore
	audits    services.PaymentAuditStore
	pinger    database.Pinger
	close     func()
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SchoolHub Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize storage
	st, err := openStores(cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}
	defer st.close()

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(registry)
	}

	// Initialize projection cache
	var summaryCache services.SummaryCache
	if cfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cfg.Redis)
		defer client.Close()
		if err := cache.Ping(context.Background(), client); err != nil {
			logger.WithError(err).Warn("Redis unavailable, projection cache disabled")
		} else {
			summaryCache = cache.NewSummaryCache(client, cfg.Redis.CacheTTL, logger)
			logger.WithField("addr", cfg.Redis.Addr).Info("Projection cache enabled")
		}
	}

	// Initialize event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.RabbitMQURL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.Events.RabbitMQURL, cfg.Events.Exchange)
		if err != nil {
			logger.WithError(err).Warn("RabbitMQ unavailable, booking events disabled")
		} else {
			publisher = rabbit
			logger.WithField("exchange", cfg.Events.Exchange).Info("Booking events enabled")
		}
	}
	defer publisher.Close()

	// Initialize payment gateway
	gateway := newGateway(cfg.Payment)
	logger.WithFields(logrus.Fields{
		"gateway": gateway.GetName(),
		"mode":    cfg.Payment.Mode,
	}).Info("Payment gateway configured")

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	bookingOpts := []services.BookingServiceOption{
		services.WithHoldWindow(cfg.Booking.HoldWindow),
		services.WithPublisher(publisher),
		services.WithMetrics(m),
	}
	if summaryCache != nil {
		bookingOpts = append(bookingOpts, services.WithSummaryCache(summaryCache))
	}

	inventoryService := services.NewInventoryService(st.resources, summaryCache, logger)
	bookingService := services.NewBookingService(st.resources, st.bookings, logger, bookingOpts...)
	reconciliationService := services.NewReconciliationService(
		st.bookings, bookingService, gateway, st.audits, logger, m, cfg.Booking.Currency,
	)
	projectionService := services.NewProjectionService(
		st.resources, st.bookings, st.audits, bookingService, summaryCache, logger,
	)
	expirationService := services.NewExpirationService(
		st.bookings, bookingService, logger, m, cfg.Booking.SweepSchedule, cfg.Booking.SweepBatch,
	)

	// Initialize and start expiry sweep
	if err := expirationService.Start(); err != nil {
		logger.Fatalf("Failed to start expiration service: %v", err)
	}

	logger.Info("All services initialized successfully")

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// CORS middleware
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     append(cfg.CORS.AllowedMethods, http.MethodPatch),
		AllowHeaders:     append(cfg.CORS.AllowedHeaders, handlers.WebhookSignatureHeader),
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(st.pinger))

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	handlers.RegisterRoutes(v1, handlers.Handlers{
		Inventory: handlers.NewInventoryHandler(inventoryService, projectionService, bookingService, logger),
		Booking:   handlers.NewBookingHandler(bookingService, reconciliationService, logger),
		Payment:   handlers.NewPaymentHandler(reconciliationService, logger),
		Admin:     handlers.NewAdminHandler(projectionService, bookingService, expirationService, logger),
	}, jwtService, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop expiry sweep
	logger.Info("Stopping expiration service...")
	expirationService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

func openStores(cfg config.DatabaseConfig, logger *logrus.Logger) (*stores, error) {
	if cfg.Driver == config.StorageDriverMemory {
		logger.Warn("Using in-memory storage; data is lost on restart")
		mem := database.NewMemoryStore()
		return &stores{
			resources: mem,
			bookings:  mem,
			audits:    mem,
			pinger:    mem,
			close:     func() {},
		}, nil
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection established")

	return &stores{
		resources: database.NewResourceRepository(db.DB),
		bookings:  database.NewBookingRepository(db.DB),
		audits:    database.NewPaymentAuditRepository(db.DB, logger),
		pinger:    db,
		close:     func() { db.Close() },
	}, nil
}

func newGateway(cfg config.PaymentConfig) payment.Gateway {
	if cfg.Mode == config.PaymentModeLive {
		return payment.NewRazorpayGateway(payment.RazorpayConfig{
			APIURL:        cfg.APIURL,
			KeyID:         cfg.KeyID,
			KeySecret:     cfg.KeySecret,
			WebhookSecret: cfg.WebhookSecret,
			Timeout:       cfg.Timeout,
		})
	}
	return payment.NewSandboxGateway(cfg.KeyID, cfg.KeySecret, cfg.WebhookSecret)
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
