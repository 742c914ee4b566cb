package model

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品目录条目。价格单位为 UGX（先令，无小数位）。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `gorm:"size:128;not null" json:"name"`
	Category string `gorm:"size:64;index" json:"category"`
	Price    int64  `gorm:"not null" json:"price"`
	// Stock 不允许为负；下单事务内通过条件 UPDATE 扣减。
	Stock     int64 `gorm:"not null;default:0" json:"stock"`
	SoldCount int64 `gorm:"not null;default:0" json:"sold_count"` // 只增不减
}

func (Product) TableName() string { return "products" }
