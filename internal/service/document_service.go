package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/practicas-api/internal/models"
	appErrors "github.com/noah-isme/practicas-api/pkg/errors"
)

type documentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Document, error)
	FindByOwner(ctx context.Context, userID string, processID, typeID int64) (*models.Document, error)
	ListByProcess(ctx context.Context, processID int64) ([]models.Document, error)
	Upsert(ctx context.Context, doc *models.Document) error
	UpdateStatus(ctx context.Context, id int64, status models.DocumentStatus, comments *string) error
	Delete(ctx context.Context, id int64) error
	FindType(ctx context.Context, id int64) (*models.DocumentType, error)
	ListTypes(ctx context.Context) ([]models.DocumentType, error)
}

type documentProcessRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Process, error)
}

type documentTemplateReader interface {
	FindByName(ctx context.Context, name string) (*models.Template, error)
}

type documentStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

type auditRecorder interface {
	Record(log *models.AuditLog)
}

// DocumentUpload carries an incoming multipart file.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// SubmitDocumentRequest describes a document submission.
type SubmitDocumentRequest struct {
	ProcessID int64 `json:"process_id" validate:"required"`
	TypeID    int64 `json:"type_id" validate:"required"`
}

// DocumentServiceConfig tunes submission behaviour.
type DocumentServiceConfig struct {
	EnforceTemplateGate bool
	MaxFileSizeBytes    int64
	AllowedMIMEs        []string
	CacheTTL            time.Duration
}

// DocumentService enforces the document review state machine and its
// role/ownership gating.
type DocumentService struct {
	docs      documentRepository
	processes documentProcessRepository
	templates documentTemplateReader
	storage   documentStorage
	cache     *CacheService
	audit     auditRecorder
	logger    *zap.Logger
	cfg       DocumentServiceConfig
}

// NewDocumentService constructs the document workflow service.
func NewDocumentService(docs documentRepository, processes documentProcessRepository, templates documentTemplateReader, storage documentStorage, cache *CacheService, audit auditRecorder, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 * 1024 * 1024
	}
	return &DocumentService{
		docs:      docs,
		processes: processes,
		templates: templates,
		storage:   storage,
		cache:     cache,
		audit:     audit,
		logger:    logger,
		cfg:       cfg,
	}
}

// Submit stores a document for the caller's process. A submission for a
// (user, process, type) tuple that already has a document replaces it and
// resets the review state to PENDING, discarding reviewer comments.
func (s *DocumentService) Submit(ctx context.Context, req SubmitDocumentRequest, upload DocumentUpload, actor *models.JWTClaims) (*models.Document, error) {
	if req.ProcessID == 0 || req.TypeID == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "process_id and type_id are required")
	}
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum allowed size")
	}
	if !mimeAllowed(upload.MimeType, s.cfg.AllowedMIMEs) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type is not allowed")
	}

	process, err := s.processes.FindByID(ctx, req.ProcessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "process not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load process")
	}
	if !actor.Role.IsAdministrative() && process.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "process belongs to another student")
	}

	docType, err := s.docs.FindType(ctx, req.TypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document type")
	}

	if s.cfg.EnforceTemplateGate {
		status, err := s.templateAvailability(ctx, docType.Name)
		if err != nil {
			return nil, err
		}
		if status == models.TemplateBlocked {
			return nil, appErrors.Clone(appErrors.ErrTemplateBlocked, fmt.Sprintf("template %q is not currently collectible", docType.Name))
		}
	}

	var previousPath string
	if existing, err := s.docs.FindByOwner(ctx, process.UserID, req.ProcessID, req.TypeID); err == nil {
		previousPath = existing.FilePath
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing document")
	}

	filename := fmt.Sprintf("documents/%d/%s%s", req.ProcessID, uuid.NewString(), filepath.Ext(upload.Filename))
	if _, err := s.storage.SaveStream(filename, upload.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document file")
	}

	doc := &models.Document{
		UserID:    process.UserID,
		ProcessID: req.ProcessID,
		TypeID:    req.TypeID,
		FilePath:  filename,
	}
	if err := s.docs.Upsert(ctx, doc); err != nil {
		if cleanupErr := s.storage.Delete(filename); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("file", filename), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save document")
	}

	// The row now points at the new file; only then is the old one removed.
	if previousPath != "" && previousPath != filename {
		if err := s.storage.Delete(previousPath); err != nil {
			s.logger.Warn("failed to remove replaced document file", zap.String("file", previousPath), zap.Error(err))
		}
	}

	s.recordAudit(actor, models.AuditActionDocumentSubmit, doc.ID, nil)
	return doc, nil
}

// Get returns a document, visible to its owner, advisors and administrators.
func (s *DocumentService) Get(ctx context.Context, id int64, actor *models.JWTClaims) (*models.Document, error) {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canRead(doc, actor) {
		return nil, appErrors.ErrForbidden
	}
	return doc, nil
}

// ListByProcess returns every document of a process.
func (s *DocumentService) ListByProcess(ctx context.Context, processID int64, actor *models.JWTClaims) ([]models.Document, error) {
	process, err := s.processes.FindByID(ctx, processID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "process not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load process")
	}
	if !actor.Role.IsAdministrative() && !isAdvisor(actor.Role) && process.UserID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	docs, err := s.docs.ListByProcess(ctx, processID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Approve marks a document approved and clears reviewer comments. The
// transition carries no precondition on the current status: re-approving
// an already-reviewed document succeeds.
func (s *DocumentService) Approve(ctx context.Context, id int64, actor *models.JWTClaims) (*models.Document, error) {
	if !actor.Role.IsAdministrative() {
		return nil, appErrors.ErrForbidden
	}
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, models.DocumentApproved, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve document")
	}
	doc.Status = models.DocumentApproved
	doc.Comments = nil
	s.recordAudit(actor, models.AuditActionDocumentApprove, doc.ID, nil)
	return doc, nil
}

// Reject marks a document rejected. Comments are mandatory; they are the
// student-facing rejection reason.
func (s *DocumentService) Reject(ctx context.Context, id int64, comments string, actor *models.JWTClaims) (*models.Document, error) {
	if !actor.Role.IsAdministrative() {
		return nil, appErrors.ErrForbidden
	}
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection comments are required")
	}
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, models.DocumentRejected, &comments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject document")
	}
	doc.Status = models.DocumentRejected
	doc.Comments = &comments
	s.recordAudit(actor, models.AuditActionDocumentReject, doc.ID, []byte(fmt.Sprintf(`{"comments":%q}`, comments)))
	return doc, nil
}

// Delete removes a document and its stored file. Owners may delete their
// own submissions; administrative roles may delete any.
func (s *DocumentService) Delete(ctx context.Context, id int64, actor *models.JWTClaims) error {
	doc, err := s.findDocument(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Role.IsAdministrative() && doc.UserID != actor.UserID {
		return appErrors.ErrForbidden
	}
	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if doc.FilePath != "" {
		if err := s.storage.Delete(doc.FilePath); err != nil {
			s.logger.Warn("failed to remove deleted document file", zap.String("file", doc.FilePath), zap.Error(err))
		}
	}
	s.recordAudit(actor, models.AuditActionDocumentDelete, doc.ID, nil)
	return nil
}

func (s *DocumentService) findDocument(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) canRead(doc *models.Document, actor *models.JWTClaims) bool {
	if actor.Role.IsAdministrative() || isAdvisor(actor.Role) {
		return true
	}
	return doc.UserID == actor.UserID
}

func isAdvisor(role models.UserRole) bool {
	return role == models.RoleAcademicAdvisor || role == models.RoleCorporateAdvisor
}

// templateAvailability resolves a template's current status through the
// read cache when enabled.
func (s *DocumentService) templateAvailability(ctx context.Context, name string) (models.TemplateStatus, error) {
	key := "template:" + name

	var cached models.TemplateStatus
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	template, err := s.templates.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No template on record means nothing to gate on.
			return models.TemplateActive, nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, template.Status, s.cfg.CacheTTL)
	}
	return template.Status, nil
}

func (s *DocumentService) recordAudit(actor *models.JWTClaims, action string, docID int64, payload []byte) {
	if s.audit == nil {
		return
	}
	resourceID := fmt.Sprintf("%d", docID)
	s.audit.Record(&models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "document",
		ResourceID: &resourceID,
		NewValues:  payload,
	})
}
