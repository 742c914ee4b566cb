package model

import (
	"time"

	"gorm.io/gorm"
)

// Address 收货地址，归属校验在下单前完成。
type Address struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID   uint   `gorm:"not null;index" json:"user_id"`
	FullName string `gorm:"size:128;not null" json:"full_name"`
	Phone    string `gorm:"size:32" json:"phone"`
	Street   string `gorm:"size:255;not null" json:"street"`
	City     string `gorm:"size:64;not null" json:"city"`
	District string `gorm:"size:64" json:"district"`
}

func (Address) TableName() string { return "addresses" }
