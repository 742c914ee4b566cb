package model

import (
	"time"

	"gorm.io/gorm"
)

// Coupon 优惠券：有效期窗口 + 使用次数上限。
// UsageCount 只在下单事务内递增，永不回退。
type Coupon struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Code       string    `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Percentage int       `gorm:"not null" json:"percentage"`
	StartDate  time.Time `gorm:"not null" json:"start_date"`
	EndDate    time.Time `gorm:"not null" json:"end_date"`
	UsageLimit int       `gorm:"not null" json:"usage_limit"`
	UsageCount int       `gorm:"not null;default:0" json:"usage_count"`
}

func (Coupon) TableName() string { return "coupons" }
