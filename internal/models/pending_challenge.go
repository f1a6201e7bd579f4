package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingChallenge holds an in-flight OTP verification for a contact.
// Signup challenges carry the name and password hash that seed the User row
// once verified; login challenges carry only the contact and code.
// Delete-before-insert in the OTP service keeps at most one row per contact.
type PendingChallenge struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	Contact string `gorm:"index;not null" json:"contact"`

	OTP       string    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`

	// LoginOTP distinguishes login verification from signup verification.
	LoginOTP bool `gorm:"default:false" json:"login_otp"`

	Name     string `json:"name"`
	Password string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (p *PendingChallenge) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Expired reports whether the challenge lapsed before the supplied instant.
func (p *PendingChallenge) Expired(now time.Time) bool {
	return now.UTC().After(p.ExpiresAt.UTC())
}
