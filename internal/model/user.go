package model

import (
	"time"
)

// swagger:model User
// User 外部身份在本地的映射，首次访问时按 subject 创建
type User struct {
	BaseModel
	Subject  string    `gorm:"size:128;uniqueIndex;not null" json:"subject"`
	Name     string    `gorm:"size:100" json:"name"`
	Email    string    `gorm:"size:100;index" json:"email"`
	LastSeen time.Time `json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}
