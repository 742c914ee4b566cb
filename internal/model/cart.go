package model

import (
	"time"

	"gorm.io/gorm"
)

// Cart 每个用户一个购物车。
type Cart struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Cart) TableName() string { return "carts" }

// CartItem 购物车行项。下单成功后由同一事务整体清空。
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CartID    uint   `gorm:"not null;index" json:"cart_id"`
	ProductID uint   `gorm:"not null;index" json:"product_id"`
	Quantity  int    `gorm:"not null;default:1" json:"quantity"`
	Size      string `gorm:"size:16" json:"size,omitempty"`
	Color     string `gorm:"size:32" json:"color,omitempty"`
}

func (CartItem) TableName() string { return "cart_items" }
