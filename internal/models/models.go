package models

import (
	"time"
)

type User struct {
	ID           string `gorm:"primaryKey"      json:"user_id"`
	Username     string `gorm:"unique;not null" json:"username"`
	PasswordHash string `gorm:"not null"        json:"-"`
}

// APIToken is the bearer credential persisted per user. The unique constraint
// on UserID guarantees at most one live token per user even when two logins
// race.
type APIToken struct {
	Token     string    `gorm:"primaryKey"      json:"token"`
	UserID    string    `gorm:"unique;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Incident struct {
	ID          string `gorm:"primaryKey"     json:"id"`
	UserID      string `gorm:"index;not null" json:"user_id"`
	Title       string `gorm:"not null"       json:"title"`
	Description string `gorm:"not null"       json:"description"`
	// Lat and Long are stored exactly as submitted, never parsed.
	Lat       string    `json:"lat"`
	Long      string    `json:"long"`
	ImageURL  *string   `json:"image_url"`
	Status    string    `gorm:"default:open"  json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
