package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delyra-api/config"
	"github.com/kendall-kelly/delyra-api/controllers"
	"github.com/kendall-kelly/delyra-api/events"
	"github.com/kendall-kelly/delyra-api/logger"
	"github.com/kendall-kelly/delyra-api/metrics"
	"github.com/kendall-kelly/delyra-api/models"
	"github.com/kendall-kelly/delyra-api/realtime"
	"github.com/kendall-kelly/delyra-api/routes"
	"github.com/kendall-kelly/delyra-api/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(logger.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.GoEnv,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		gormLevel = gormlogger.Info
	}
	if err := config.ConnectDatabase(cfg.DatabaseURL, logger.NewGormLogger(gormLevel, 200*time.Millisecond)); err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}

	db := config.GetDB()
	if err := db.AutoMigrate(models.All()...); err != nil {
		zl.Fatal("failed to migrate database", zap.Error(err))
	}
	zl.Info("database migration completed")

	rdb, err := config.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		zl.Fatal("failed to connect to redis", zap.Error(err))
	}

	m := metrics.Default()
	queue := services.NewTaskQueue(cfg.NotificationWorkers, cfg.NotificationQueueSize, m)
	publisher := newPublisher(cfg, m)
	hub := wireServices(ctx, cfg, db, rdb, queue, publisher, m)
	zl.Info("services wired",
		zap.String("instance_id", hub.InstanceID()),
		zap.Bool("push_enabled", cfg.PushEnabled()),
		zap.Bool("backplane_enabled", rdb != nil),
		zap.Bool("events_enabled", len(cfg.KafkaBrokers) > 0),
	)

	router, err := setupRouter(cfg)
	if err != nil {
		zl.Fatal("failed to set up routes", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown incomplete", zap.Error(err))
	}
	// close frames go out before the queue stops so in-flight chat notifications still run
	if err := hub.Close(shutdownCtx); err != nil {
		zl.Warn("realtime connections still open", zap.Error(err))
	}
	queue.Close()
	if err := publisher.Close(); err != nil {
		zl.Warn("event publisher close failed", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

// newPublisher returns the kafka publisher when brokers are configured
func newPublisher(cfg *config.Config, m *metrics.Metrics) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NoopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, cfg.NotificationQueueSize, m)
}

// wireServices builds the domain services and hands them to the controllers.
// With a redis client the hub relays rooms across instances until ctx ends.
func wireServices(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, queue *services.TaskQueue, publisher events.Publisher, m *metrics.Metrics) *realtime.Hub {
	var push services.PushSender
	if cfg.PushEnabled() {
		fcm, err := services.NewFCMPushService(ctx, cfg.FirebaseCredentials, cfg.FirebaseAccountJSON)
		if err != nil {
			zap.L().Error("push delivery disabled", zap.Error(err))
		} else {
			push = fcm
		}
	}

	notifier := services.NewNotificationService(db, push, queue, m)
	chat := services.NewChatService(db, notifier, m)

	hubOpts := []realtime.HubOption{realtime.WithTaskQueue(queue), realtime.WithMetrics(m)}
	var backplane *realtime.RedisBackplane
	if rdb != nil {
		backplane = realtime.NewRedisBackplane(rdb)
		hubOpts = append(hubOpts, realtime.WithBackplane(backplane))
	}
	hub := realtime.NewHub(chat, hubOpts...)
	if backplane != nil {
		go func() {
			if err := backplane.Listen(ctx, hub); err != nil {
				zap.L().Error("chat backplane stopped", zap.Error(err))
			}
		}()
	}

	controllers.SetNotificationService(notifier)
	controllers.SetOrderService(services.NewOrderService(db, notifier, queue, publisher, m))
	controllers.SetChatService(chat)
	controllers.SetHub(hub)
	return hub
}

// setupRouter builds the engine with the public endpoints and the authenticated API
func setupRouter(cfg *config.Config) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)
	}
	if err := routes.Register(v1, cfg); err != nil {
		return nil, err
	}
	return router, nil
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Delyra API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database is not initialized",
			},
		})
		return
	}

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
