package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicas-api/internal/models"
)

// DocumentRepository handles persistence for student submissions and their
// document types.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository instantiates a document repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = "id, user_id, process_id, type_id, file_path, status, comments, created_at, updated_at"

// FindByID loads a document by identifier.
func (r *DocumentRepository) FindByID(ctx context.Context, id int64) (*models.Document, error) {
	query := fmt.Sprintf("SELECT %s FROM documents WHERE id = $1", documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByOwner loads the document submitted for a (user, process, type) tuple.
func (r *DocumentRepository) FindByOwner(ctx context.Context, userID string, processID, typeID int64) (*models.Document, error) {
	query := fmt.Sprintf("SELECT %s FROM documents WHERE user_id = $1 AND process_id = $2 AND type_id = $3", documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, userID, processID, typeID); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByProcess returns every document submitted within a process.
func (r *DocumentRepository) ListByProcess(ctx context.Context, processID int64) ([]models.Document, error) {
	query := fmt.Sprintf("SELECT %s FROM documents WHERE process_id = $1 ORDER BY type_id", documentColumns)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, processID); err != nil {
		return nil, fmt.Errorf("list process documents: %w", err)
	}
	return docs, nil
}

// Upsert inserts a submission or replaces the existing one for the same
// (user, process, type) tuple. A replacement resets status to PENDING and
// clears reviewer comments.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.Status = models.DocumentPending
	doc.Comments = nil

	const query = `INSERT INTO documents (user_id, process_id, type_id, file_path, status, comments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)
		ON CONFLICT (user_id, process_id, type_id)
		DO UPDATE SET file_path = EXCLUDED.file_path, status = EXCLUDED.status, comments = NULL, updated_at = EXCLUDED.updated_at
		RETURNING id`
	if err := r.db.GetContext(ctx, &doc.ID, query, doc.UserID, doc.ProcessID, doc.TypeID, doc.FilePath, doc.Status, doc.CreatedAt, doc.UpdatedAt); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// UpdateStatus applies a review decision.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id int64, status models.DocumentStatus, comments *string) error {
	const query = `UPDATE documents SET status = $2, comments = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, comments, time.Now().UTC()); err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// Delete removes a document permanently.
func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// FindType loads a document type by identifier.
func (r *DocumentRepository) FindType(ctx context.Context, id int64) (*models.DocumentType, error) {
	const query = `SELECT id, name, created_at FROM document_types WHERE id = $1`
	var dt models.DocumentType
	if err := r.db.GetContext(ctx, &dt, query, id); err != nil {
		return nil, err
	}
	return &dt, nil
}

// ListTypes returns every document type.
func (r *DocumentRepository) ListTypes(ctx context.Context) ([]models.DocumentType, error) {
	const query = `SELECT id, name, created_at FROM document_types ORDER BY id`
	var types []models.DocumentType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	return types, nil
}
