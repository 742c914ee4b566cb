package model

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatus 支付状态（与网关回写保持一致的大写枚举）。
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// OrderStatus 履约状态。DELIVERED / CANCELLED 为终态。
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// Valid 判断是否为已知履约状态。
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Terminal 终态不允许再被覆盖。
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// Order 订单主记录。Items / Payment 随订单级联，创建后行项不可变。
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderNo   string `gorm:"size:64;uniqueIndex;not null" json:"order_no"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`
	AddressID uint   `gorm:"not null" json:"address_id"`
	CouponID  *uint  `gorm:"index" json:"coupon_id,omitempty"`

	TotalAmount   int64         `gorm:"not null" json:"total_amount"` // UGX
	PaymentStatus PaymentStatus `gorm:"size:16;not null;default:'PENDING'" json:"payment_status"`
	Status        OrderStatus   `gorm:"size:16;not null;default:'PENDING'" json:"status"`

	Items   []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Payment *Payment    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"payment,omitempty"`
	Address *Address    `gorm:"foreignKey:AddressID" json:"address,omitempty"`
	Coupon  *Coupon     `gorm:"foreignKey:CouponID" json:"coupon,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderItem 下单时刻的商品快照，后续改价不影响历史订单。
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrderID     uint   `gorm:"not null;index" json:"order_id"`
	ProductID   uint   `gorm:"not null;index" json:"product_id"`
	ProductName string `gorm:"size:128;not null" json:"product_name"`
	Category    string `gorm:"size:64" json:"category"`
	Price       int64  `gorm:"not null" json:"price"` // 单价快照，UGX
	Quantity    int    `gorm:"not null" json:"quantity"`
	Size        string `gorm:"size:16" json:"size,omitempty"`
	Color       string `gorm:"size:32" json:"color,omitempty"`
}

func (OrderItem) TableName() string { return "order_items" }

// Payment 每个订单至多一条支付记录。
type Payment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrderID       uint          `gorm:"not null;uniqueIndex" json:"order_id"`
	Amount        int64         `gorm:"not null" json:"amount"`
	PaymentMethod string        `gorm:"size:32;not null" json:"payment_method"`
	TransactionID string        `gorm:"size:64" json:"transaction_id,omitempty"` // 网关交易号，货到付款时为空
	Status        PaymentStatus `gorm:"size:16;not null" json:"status"`
}

func (Payment) TableName() string { return "payments" }
