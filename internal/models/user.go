package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultProfileImage is assigned to accounts created through OTP verification.
const DefaultProfileImage = "https://i.pravatar.cc/150?img=12"

// User describes a verified account. Rows are only ever created by a
// successful signup OTP verification.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Contact  string `gorm:"uniqueIndex;not null" json:"contact"`
	Password string `gorm:"not null" json:"-"`

	Verified bool   `gorm:"default:false" json:"verified"`
	Image    string `json:"image"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Image == "" {
		u.Image = DefaultProfileImage
	}
	return nil
}
