package models

import "time"

// LoginLink is a single-use magic-link token emailed to an operator.
// Only the SHA-256 hash of the token is stored.
type LoginLink struct {
	BaseModel

	Email     string     `gorm:"index;not null" json:"email"`
	TokenHash string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
}

// Usable reports whether the link can still be redeemed at the given time.
func (l *LoginLink) Usable(now time.Time) bool {
	return l.UsedAt == nil && now.Before(l.ExpiresAt)
}
