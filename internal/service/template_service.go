package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/practicas-api/internal/models"
	appErrors "github.com/noah-isme/practicas-api/pkg/errors"
)

type templateRepository interface {
	List(ctx context.Context) ([]models.Template, error)
	FindByName(ctx context.Context, name string) (*models.Template, error)
	Create(ctx context.Context, template *models.Template) error
	ReplaceFile(ctx context.Context, name, filePath string) (*string, error)
	SetStatusManual(ctx context.Context, name string, status models.TemplateStatus, at time.Time) error
	Delete(ctx context.Context, name string) error
}

// SetTemplateStatusRequest carries a manual availability toggle.
type SetTemplateStatusRequest struct {
	Status models.TemplateStatus `json:"status" validate:"required,oneof=ACTIVE BLOCKED"`
}

// TemplateServiceConfig tunes template uploads and caching.
type TemplateServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	CacheTTL         time.Duration
}

// TemplateService manages document templates: the files students download
// and the availability flag that gates submissions.
type TemplateService struct {
	templates templateRepository
	storage   documentStorage
	cache     *CacheService
	audit     auditRecorder
	logger    *zap.Logger
	cfg       TemplateServiceConfig

	now func() time.Time
}

// NewTemplateService constructs a template service.
func NewTemplateService(templates templateRepository, storage documentStorage, cache *CacheService, audit auditRecorder, logger *zap.Logger, cfg TemplateServiceConfig) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 * 1024 * 1024
	}
	return &TemplateService{
		templates: templates,
		storage:   storage,
		cache:     cache,
		audit:     audit,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns every template.
func (s *TemplateService) List(ctx context.Context) ([]models.Template, error) {
	templates, err := s.templates.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// Get loads a single template by name.
func (s *TemplateService) Get(ctx context.Context, name string) (*models.Template, error) {
	template, err := s.templates.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return template, nil
}

// Upload stores a template file and binds it to the named template,
// creating the record when it does not exist yet. On replacement the row is
// updated before the old file is removed, so a reader never observes a
// template pointing at a missing file.
func (s *TemplateService) Upload(ctx context.Context, name string, upload DocumentUpload, actor *models.JWTClaims) (*models.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template name is required")
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

	filename := fmt.Sprintf("templates/%s%s", uuid.NewString(), filepath.Ext(upload.Filename))
	if _, err := s.storage.SaveStream(filename, upload.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store template file")
	}

	existing, err := s.templates.FindByName(ctx, name)
	switch {
	case err == nil:
		oldPath, err := s.templates.ReplaceFile(ctx, name, filename)
		if err != nil {
			s.discard(filename)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace template file")
		}
		if oldPath != nil && *oldPath != "" && *oldPath != filename {
			if err := s.storage.Delete(*oldPath); err != nil {
				s.logger.Warn("failed to remove replaced template file", zap.String("file", *oldPath), zap.Error(err))
			}
		}
		existing.FilePath = &filename
	case errors.Is(err, sql.ErrNoRows):
		existing = &models.Template{Name: name, FilePath: &filename, Status: models.TemplateActive}
		if err := s.templates.Create(ctx, existing); err != nil {
			s.discard(filename)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
		}
	default:
		s.discard(filename)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}

	s.recordAudit(actor, models.AuditActionTemplateUpload, name, nil)
	return existing, nil
}

// SetStatus applies an administrator toggle. The manual-change timestamp it
// records shields the template from the availability cascade for the
// duration of the grace window.
func (s *TemplateService) SetStatus(ctx context.Context, name string, req SetTemplateStatusRequest, actor *models.JWTClaims) (*models.Template, error) {
	if req.Status != models.TemplateActive && req.Status != models.TemplateBlocked {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be ACTIVE or BLOCKED")
	}

	at := s.now()
	if err := s.templates.SetStatusManual(ctx, name, req.Status, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set template status")
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, "template:"+name)
	}

	s.recordAudit(actor, models.AuditActionTemplateToggle, name, []byte(fmt.Sprintf(`{"status":%q}`, req.Status)))
	return s.Get(ctx, name)
}

// Delete removes a template and its stored file.
func (s *TemplateService) Delete(ctx context.Context, name string, actor *models.JWTClaims) error {
	template, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.templates.Delete(ctx, name); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	if template.FilePath != nil && *template.FilePath != "" {
		if err := s.storage.Delete(*template.FilePath); err != nil {
			s.logger.Warn("failed to remove deleted template file", zap.String("file", *template.FilePath), zap.Error(err))
		}
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, "template:"+name)
	}
	s.recordAudit(actor, models.AuditActionTemplateDelete, name, nil)
	return nil
}

func (s *TemplateService) discard(filename string) {
	if err := s.storage.Delete(filename); err != nil {
		s.logger.Warn("failed to remove orphaned upload", zap.String("file", filename), zap.Error(err))
	}
}

func (s *TemplateService) recordAudit(actor *models.JWTClaims, action, name string, payload []byte) {
	if s.audit == nil || actor == nil {
		return
	}
	s.audit.Record(&models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "template",
		ResourceID: &name,
		NewValues:  payload,
	})
}

func mimeAllowed(mime string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, mime) {
			return true
		}
	}
	return false
}
