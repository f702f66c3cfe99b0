package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicas-api/internal/models"
)

// ProcessRepository handles persistence for student process registrations.
type ProcessRepository struct {
	db *sqlx.DB
}

// NewProcessRepository instantiates a process repository.
func NewProcessRepository(db *sqlx.DB) *ProcessRepository {
	return &ProcessRepository{db: db}
}

// FindByID loads a process by identifier.
func (r *ProcessRepository) FindByID(ctx context.Context, id int64) (*models.Process, error) {
	const query = `SELECT id, user_id, period_id, type, created_at FROM processes WHERE id = $1`
	var process models.Process
	if err := r.db.GetContext(ctx, &process, query, id); err != nil {
		return nil, err
	}
	return &process, nil
}

// ListByUser returns the processes registered by a user.
func (r *ProcessRepository) ListByUser(ctx context.Context, userID string) ([]models.Process, error) {
	const query = `SELECT id, user_id, period_id, type, created_at FROM processes WHERE user_id = $1 ORDER BY id DESC`
	var processes []models.Process
	if err := r.db.SelectContext(ctx, &processes, query, userID); err != nil {
		return nil, fmt.Errorf("list user processes: %w", err)
	}
	return processes, nil
}

// Create inserts a new process registration.
func (r *ProcessRepository) Create(ctx context.Context, process *models.Process) error {
	if process.CreatedAt.IsZero() {
		process.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO processes (user_id, period_id, type, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.GetContext(ctx, &process.ID, query, process.UserID, process.PeriodID, process.Type, process.CreatedAt); err != nil {
		return fmt.Errorf("create process: %w", err)
	}
	return nil
}
