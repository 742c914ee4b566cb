package queue

import (
	"context"
	"encoding/json"

	"ugmart/internal/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Consumer 消费订单创建事件，把待处理订单推进到 PROCESSING（履约启动）。
type Consumer struct {
	r      *kafka.Reader
	db     *gorm.DB
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		db:     db,
		logger: logger,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		var evt OrderCreatedEvent
		if err := json.Unmarshal(m.Value, &evt); err != nil {
			c.logger.Warn("consumer unmarshal", zap.Error(err))
			continue
		}
		if err := evt.Validate(); err != nil {
			c.logger.Warn("consumer drop invalid event", zap.Error(err))
			continue
		}

		// 条件更新保证幂等：重复消息对非 PENDING 订单不产生影响。
		res := c.db.WithContext(ctx).Model(&model.Order{}).
			Where("order_no = ? AND status = ?", evt.OrderNo, model.OrderPending).
			Update("status", model.OrderProcessing)
		if res.Error != nil {
			c.logger.Error("consumer advance order status",
				zap.String("order_no", evt.OrderNo), zap.Error(res.Error))
			continue
		}
		if res.RowsAffected > 0 {
			c.logger.Info("order moved to processing", zap.String("order_no", evt.OrderNo))
		}
	}
}
