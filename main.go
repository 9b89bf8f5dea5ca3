package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gainmode46-star/gainmode-backend/cache"
	"github.com/gainmode46-star/gainmode-backend/controllers"
	"github.com/gainmode46-star/gainmode-backend/database"
	"github.com/gainmode46-star/gainmode-backend/kafka"
	"github.com/gainmode46-star/gainmode-backend/logger"
	"github.com/gainmode46-star/gainmode-backend/middleware"
	"github.com/gainmode46-star/gainmode-backend/models"
	aws_pkg "github.com/gainmode46-star/gainmode-backend/pkg/aws"
	"github.com/gainmode46-star/gainmode-backend/repository"
	"github.com/gainmode46-star/gainmode-backend/routes"
	"github.com/gainmode46-star/gainmode-backend/services"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	logger.Initialize(cfg.Environment)
	defer logger.Sync()
	log := logger.Log

	// --- Database ---
	db, err := database.Connect(database.Config{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSLMode,
		TimeZone: cfg.PostgresTimeZone,
	}, log,
		&models.Coupon{},
		&models.CouponRedemption{},
		&models.GiftCard{},
		&models.GiftCardTransaction{},
		&models.Order{},
		&models.OrderItem{},
		&models.TimelineEntry{},
	)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}

	// --- Redis (idempotency) ---
	var idem services.IdempotencyGuard
	if redisClient, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
		log.Warn("Redis unavailable, idempotency keys disabled", zap.Error(err))
	} else {
		idem = cache.NewIdempotencyStore(redisClient, 24*time.Hour)
	}

	// --- AWS setup ---
	awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
	if err != nil {
		log.Fatal("Failed to load AWS config", zap.Error(err))
	}
	snsClient := aws_pkg.NewSNSClient(awsCfg)

	metricsClient, err := aws_pkg.NewMetricsClient(context.Background())
	if err != nil {
		log.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	}

	// --- Kafka ---
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, log)
	defer producer.Close()

	// --- Dependency injection ---
	couponRepo := repository.NewGormCouponRepository(db)
	giftCardRepo := repository.NewGormGiftCardRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)

	couponService := services.NewCouponService(couponRepo, idem, snsClient, cfg.PromotionSNSTopicARN, log)
	giftCardService := services.NewGiftCardService(giftCardRepo, snsClient, cfg.GiftCardSNSTopicARN, log)
	orderService := services.NewOrderService(orderRepo, producer, snsClient, cfg.OrderSNSTopicARN, log)
	checkout := services.NewCheckoutOrchestrator(couponService, giftCardService, orderService, idem, log)

	couponController := controllers.NewCouponController(couponService)
	giftCardController := controllers.NewGiftCardController(giftCardService)
	orderController := controllers.NewOrderController(orderService, checkout)

	// --- HTTP router ---
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(middleware.Metrics(metricsClient))
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	routes.Register(r, []byte(cfg.JWTSecret), couponController, giftCardController, orderController)

	// --- Shipment consumer ---
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if queueURL, err := aws_pkg.GetQueueURL(consumerCtx, awsCfg, cfg.ShipmentQueueName); err != nil {
		log.Warn("Shipment queue lookup failed, carrier updates disabled", zap.Error(err))
	} else {
		consumer := services.NewShipmentConsumer(aws_pkg.NewSQSConsumer(awsCfg, queueURL), orderService, log)
		go consumer.Start(consumerCtx)
	}

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("Store backend started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	stopConsumer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	if err := database.Close(db); err != nil {
		log.Error("Database close error", zap.Error(err))
	}

	log.Info("Store backend stopped gracefully")
}
