package domain

import "time"

// ApiKey is a static service credential checked by the gate middleware. It is
// a coarser, independent trust boundary from the per-user bearer token.
type ApiKey struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Key       string     `gorm:"size:128;uniqueIndex;not null" json:"-"`
	Owner     string     `gorm:"size:50;not null" json:"owner"`
	Role      string     `gorm:"size:50;not null;default:user" json:"role"`
	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Scope     *string    `gorm:"size:200" json:"scope,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	Audits []ApiKeyAudit `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Authorizes reports whether the key admits a request at the given instant.
func (k *ApiKey) Authorizes(now time.Time) bool {
	return k.IsActive && (k.ExpiresAt == nil || k.ExpiresAt.After(now))
}

// ApiKeyAudit is an append-only access record written by the gate. Nothing in
// the request path reads it back.
type ApiKeyAudit struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ApiKeyID   uint      `gorm:"index;not null" json:"api_key_id"`
	Endpoint   string    `gorm:"size:255" json:"endpoint"`
	IP         string    `gorm:"size:64" json:"ip"`
	AccessedAt time.Time `json:"accessed_at"`
}
