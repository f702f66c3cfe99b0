package models

import "time"

// TemplateStatus is the availability state of a document template.
type TemplateStatus string

const (
	TemplateActive  TemplateStatus = "ACTIVE"
	TemplateBlocked TemplateStatus = "BLOCKED"
)

// Template models an administrator-managed document blueprint ("formato").
//
// LastManualChange is set only by explicit administrator toggles; cascade
// writes leave it untouched so the record stays cascade-eligible.
type Template struct {
	Name             string         `db:"name" json:"name"`
	FilePath         *string        `db:"file_path" json:"file_path,omitempty"`
	Status           TemplateStatus `db:"status" json:"status"`
	LastManualChange *time.Time     `db:"last_manual_change" json:"last_manual_change,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}
