package domain

import "time"

// RefreshToken is the stateful anchor of a session: an opaque random string
// exchanged for a new access token until it expires or is revoked. Rotation
// marks the presented row revoked and inserts an unrelated replacement, so
// revoked rows remain as a forensic trail.
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Token     string     `gorm:"size:128;uniqueIndex;not null" json:"-"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"index;not null" json:"expires_at"`
	Revoked   bool       `gorm:"not null;default:false" json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the token can still mint an access token.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
