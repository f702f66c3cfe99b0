package models

import "time"

// PeriodPhase represents the academic phase of a period.
type PeriodPhase string

const (
	PhaseJanJun PeriodPhase = "ENERO-JUNIO"
	PhaseAugDec PeriodPhase = "AGOSTO-DICIEMBRE"
	PhaseSummer PeriodPhase = "VERANO"
)

// Period models an academic period during which processes run.
//
// The serial id doubles as the recency tie-break: the period with the
// highest id is the reference period for the availability cascade.
type Period struct {
	ID        int64       `db:"id" json:"id"`
	Year      int         `db:"year" json:"year"`
	Phase     PeriodPhase `db:"phase" json:"phase"`
	StartDate time.Time   `db:"start_date" json:"start_date"`
	EndDate   time.Time   `db:"end_date" json:"end_date"`
	EndTime   string      `db:"end_time" json:"end_time"`
	Active    bool        `db:"active" json:"active"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// EndsAt combines the end date and end time columns into a single instant.
// A malformed end time falls back to the end of the day.
func (p Period) EndsAt() time.Time {
	h, m, s := 23, 59, 59
	if t, err := time.Parse("15:04:05", p.EndTime); err == nil {
		h, m, s = t.Hour(), t.Minute(), t.Second()
	}
	d := p.EndDate
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, s, 0, time.UTC)
}

// PeriodFilter defines filters supported by list endpoints.
type PeriodFilter struct {
	Year      int
	Phase     PeriodPhase
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
