package domain

import "time"

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

type Template struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"index;not null" json:"owner_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"size:2000" json:"description"`
	Visibility  string    `gorm:"size:20;not null;default:public" json:"visibility"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Dependencies []TemplateDependency `gorm:"constraint:OnDelete:CASCADE" json:"dependencies,omitempty"`
}

// TemplateDependency pins one package at one version inside a template, with
// a per-OS install command.
type TemplateDependency struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	TemplateID uint   `gorm:"index;not null" json:"-"`
	Package    string `gorm:"size:255;not null" json:"package"`
	Version    string `gorm:"size:100;not null" json:"version"`
	OS         string `gorm:"size:50;not null" json:"os"`
	Command    string `gorm:"size:1000" json:"command"`
}
