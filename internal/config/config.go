package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）与订单事件 Topic
	KafkaBrokers    []string
	OrderEventTopic string

	// 会话令牌密钥（身份中间件使用）
	JWTSecret string

	// PayPal 网关
	PaypalBaseURL      string
	PaypalClientID     string
	PaypalClientSecret string
	// UGX -> USD 结算汇率（多少先令换 1 美元）
	FXRateUGXPerUSD int64
	FrontendURL     string
	GatewayTimeout  time.Duration
	// 访问令牌兜底有效期（网关未返回 expires_in 时使用）
	TokenFallbackTTL time.Duration
	// 提前于网关声明的有效期失效，避免边界过期
	TokenExpiryMargin time.Duration

	// 下单接口限流与事务超时
	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration
	CheckoutTimeout    time.Duration

	// 商品库存展示缓存
	StockCacheTTL time.Duration
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "ugmart.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		OrderEventTopic:    getEnv("ORDER_EVENT_TOPIC", "ugmart-order-created"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		PaypalBaseURL:      getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		PaypalClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
		PaypalClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
		FXRateUGXPerUSD:    3600,
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		GatewayTimeout:     10 * time.Second,
		TokenFallbackTTL:   8 * time.Hour,
		TokenExpiryMargin:  time.Minute,
		CheckoutRateLimit:  100,
		CheckoutRateWindow: time.Second,
		CheckoutTimeout:    10 * time.Second,
		StockCacheTTL:      24 * time.Hour,
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	fxRate, err := getEnvInt("FX_RATE_UGX_PER_USD", int(cfg.FXRateUGXPerUSD))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid FX_RATE_UGX_PER_USD: %w", err)
	}
	if fxRate <= 0 {
		return AppConfig{}, fmt.Errorf("FX_RATE_UGX_PER_USD must be > 0")
	}
	cfg.FXRateUGXPerUSD = int64(fxRate)

	gatewayTimeoutSec, err := getEnvInt("GATEWAY_TIMEOUT_SEC", int(cfg.GatewayTimeout.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid GATEWAY_TIMEOUT_SEC: %w", err)
	}
	if gatewayTimeoutSec <= 0 {
		return AppConfig{}, fmt.Errorf("GATEWAY_TIMEOUT_SEC must be > 0")
	}
	cfg.GatewayTimeout = time.Duration(gatewayTimeoutSec) * time.Second

	rateLimit, err := getEnvInt("CHECKOUT_RATE_LIMIT", cfg.CheckoutRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_RATE_LIMIT must be > 0")
	}
	cfg.CheckoutRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("CHECKOUT_RATE_WINDOW_SEC", int(cfg.CheckoutRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_RATE_WINDOW_SEC must be > 0")
	}
	cfg.CheckoutRateWindow = time.Duration(rateWindowSec) * time.Second

	checkoutTimeoutSec, err := getEnvInt("CHECKOUT_TIMEOUT_SEC", int(cfg.CheckoutTimeout.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_TIMEOUT_SEC: %w", err)
	}
	if checkoutTimeoutSec <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_TIMEOUT_SEC must be > 0")
	}
	cfg.CheckoutTimeout = time.Duration(checkoutTimeoutSec) * time.Second

	stockTTLHour, err := getEnvInt("STOCK_CACHE_TTL_HOUR", int(cfg.StockCacheTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid STOCK_CACHE_TTL_HOUR: %w", err)
	}
	if stockTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("STOCK_CACHE_TTL_HOUR must be > 0")
	}
	cfg.StockCacheTTL = time.Duration(stockTTLHour) * time.Hour

	if cfg.JWTSecret == "" {
		return AppConfig{}, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.OrderEventTopic == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_TOPIC must not be empty")
	}
	if cfg.PaypalBaseURL == "" {
		return AppConfig{}, fmt.Errorf("PAYPAL_BASE_URL must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
