package user

import (
	"time"
)

// User 用户实体（聚合根）
// 1. 密码为bcrypt哈希值，不提供任何明文访问
// 2. IsStaff决定能否管理目录数据以及能否看到价格输入字段
type User struct {
	ID        uint
	Email     string
	Password  string // bcrypt哈希值
	Nickname  string
	IsStaff   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser 创建新用户（工厂方法）
// hashedPassword必须是bcrypt加密后的密码
func NewUser(email, hashedPassword, nickname string, isStaff bool) *User {
	now := time.Now()
	return &User{
		Email:     email,
		Password:  hashedPassword,
		Nickname:  nickname,
		IsStaff:   isStaff,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
