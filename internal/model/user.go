package model

import "time"

// 用户角色
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// User 登录主体，最多属于一个租户
// 验证码/重置码不落库，存放在带 TTL 的 KV 中
type User struct {
	BaseModel
	TenantID     *int64     `gorm:"index" json:"tenant_id"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name         string     `gorm:"size:128" json:"name"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Role         string     `gorm:"size:32;default:owner" json:"role"`
	IsVerified   bool       `gorm:"default:false" json:"is_verified"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

func (User) TableName() string { return "users" }
