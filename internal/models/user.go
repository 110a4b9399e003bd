package models

import (
	"time"
)

type User struct {
	ID            uint      `gorm:"primaryKey"`
	TelegramID    int64     `gorm:"uniqueIndex;not null"`
	FirstName     string    `gorm:"type:varchar(255)"`
	Username      string    `gorm:"type:varchar(255)"`
	LanguageCode  string    `gorm:"type:varchar(8);default:'pl'"`
	SelectedModel string    `gorm:"type:varchar(64)"`
	LastActivity  time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
