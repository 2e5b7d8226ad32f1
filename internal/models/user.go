package models

import "time"

// UserModel is the blog admin.
type UserModel struct {
	Base
	Username      string     `json:"username"        gorm:"size:64;uniqueIndex;not null"`
	Password      string     `json:"-"               gorm:"not null"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
}

func (UserModel) TableName() string { return "users" }
