package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicas-api/internal/models"
)

// TemplateRepository handles persistence for document templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository instantiates a template repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = "name, file_path, status, last_manual_change, created_at, updated_at"

// List returns every template.
func (r *TemplateRepository) List(ctx context.Context) ([]models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM templates ORDER BY name", templateColumns)
	var templates []models.Template
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// FindByName loads a template by its name business key.
func (r *TemplateRepository) FindByName(ctx context.Context, name string) (*models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM templates WHERE name = $1", templateColumns)
	var template models.Template
	if err := r.db.GetContext(ctx, &template, query, name); err != nil {
		return nil, err
	}
	return &template, nil
}

// Create inserts a new template record.
func (r *TemplateRepository) Create(ctx context.Context, template *models.Template) error {
	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now
	if template.Status == "" {
		template.Status = models.TemplateActive
	}

	const query = `INSERT INTO templates (name, file_path, status, last_manual_change, created_at, updated_at) VALUES (:name, :file_path, :status, :last_manual_change, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, template); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// ReplaceFile swaps the backing file reference inside a transaction and
// returns the previous file path so the caller can remove it after commit.
func (r *TemplateRepository) ReplaceFile(ctx context.Context, name, filePath string) (*string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace file tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var oldPath *string
	if err = tx.GetContext(ctx, &oldPath, `SELECT file_path FROM templates WHERE name = $1 FOR UPDATE`, name); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE templates SET file_path = $2, updated_at = $3 WHERE name = $1`, name, filePath, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("replace template file: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace file tx: %w", err)
	}
	return oldPath, nil
}

// SetStatusManual applies an administrator toggle, recording the manual
// change timestamp that starts the cascade grace window.
func (r *TemplateRepository) SetStatusManual(ctx context.Context, name string, status models.TemplateStatus, at time.Time) error {
	const query = `UPDATE templates SET status = $2, last_manual_change = $3, updated_at = $3 WHERE name = $1`
	result, err := r.db.ExecContext(ctx, query, name, status, at)
	if err != nil {
		return fmt.Errorf("set template status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set template status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CascadeStatus applies a lifecycle-driven status change. The write is a
// compare-and-swap on the manual-change timestamp observed when the run
// loaded the template, so a manual toggle landing mid-run wins. The manual
// timestamp itself is never touched by a cascade.
func (r *TemplateRepository) CascadeStatus(ctx context.Context, name string, status models.TemplateStatus, observedManualChange *time.Time) (bool, error) {
	const query = `UPDATE templates SET status = $2, updated_at = $3 WHERE name = $1 AND last_manual_change IS NOT DISTINCT FROM $4`
	result, err := r.db.ExecContext(ctx, query, name, status, time.Now().UTC(), observedManualChange)
	if err != nil {
		return false, fmt.Errorf("cascade template status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cascade template status rows: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a template permanently.
func (r *TemplateRepository) Delete(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE name = $1`, name); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}
