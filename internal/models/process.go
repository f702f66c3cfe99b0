package models

import "time"

// ProcessType distinguishes the academic processes a student can register.
type ProcessType string

const (
	ProcessPracticas      ProcessType = "PRACTICAS"
	ProcessServicioSocial ProcessType = "SERVICIO_SOCIAL"
)

// Process is a student's enrollment into an academic process for a period.
type Process struct {
	ID        int64       `db:"id" json:"id"`
	UserID    string      `db:"user_id" json:"user_id"`
	PeriodID  int64       `db:"period_id" json:"period_id"`
	Type      ProcessType `db:"type" json:"type"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
