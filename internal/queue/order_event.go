package queue

import (
	"fmt"
	"time"
)

// OrderCreatedEvent 是订单提交成功后写入 Kafka 的事件。
type OrderCreatedEvent struct {
	OrderNo     string    `json:"order_no"`
	OrderID     uint      `json:"order_id"`
	UserID      uint      `json:"user_id"`
	TotalAmount int64     `json:"total_amount"` // UGX
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (e OrderCreatedEvent) Validate() error {
	if e.OrderNo == "" {
		return fmt.Errorf("order_no is required")
	}
	if e.OrderID == 0 {
		return fmt.Errorf("order_id is required")
	}
	if e.UserID == 0 {
		return fmt.Errorf("user_id is required")
	}
	if e.TotalAmount <= 0 {
		return fmt.Errorf("total_amount must be > 0")
	}
	if e.ItemCount <= 0 {
		return fmt.Errorf("item_count must be > 0")
	}
	return nil
}
