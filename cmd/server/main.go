package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ugmart/internal/checkout"
	"ugmart/internal/config"
	"ugmart/internal/model"
	"ugmart/internal/paypal"
	"ugmart/internal/queue"
	"ugmart/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 连接 SQLite，自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Address{},
		&model.Product{},
		&model.Coupon{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
	); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// 2. Redis（限流 + 库存展示缓存）
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()

	// 3. Kafka 订单事件：生产者同步发布，消费者推进履约状态
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.OrderEventTopic)
	defer producer.Close()

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.OrderEventTopic,
		"ugmart-fulfillment", db, logger)
	defer consumer.Close()
	go consumer.Run(ctx)

	// 4. 支付网关客户端
	pp := paypal.New(paypal.Config{
		BaseURL:      cfg.PaypalBaseURL,
		ClientID:     cfg.PaypalClientID,
		ClientSecret: cfg.PaypalClientSecret,
		FXRate:       cfg.FXRateUGXPerUSD,
		FrontendURL:  cfg.FrontendURL,
		Timeout:      cfg.GatewayTimeout,
		FallbackTTL:  cfg.TokenFallbackTTL,
		ExpiryMargin: cfg.TokenExpiryMargin,
	}, logger)

	// 5. 下单服务与路由
	svc := checkout.NewService(db, logger, producer, cfg.CheckoutTimeout)

	r := gin.Default()
	router.Setup(r, db, rdb, svc, pp, cfg)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// 等待退出信号，优雅关停
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel() // 停止消费者
}
