package model

import (
	"time"

	"gorm.io/gorm"
)

// 角色常量：SUPER_ADMIN 可访问管理端点。
const (
	RoleCustomer   = "CUSTOMER"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// User 账号信息由会话中间件消费，核心流程只依赖 ID 与 Role。
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `gorm:"size:128;not null" json:"name"`
	Email    string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"`
	Role     string `gorm:"size:32;not null;default:'CUSTOMER'" json:"role"`
}

func (User) TableName() string { return "users" }
