package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicas-api/internal/models"
	appErrors "github.com/noah-isme/practicas-api/pkg/errors"
)

type templateAdminRepoStub struct {
	templates map[string]*models.Template
}

func newTemplateAdminRepoStub(templates ...*models.Template) *templateAdminRepoStub {
	stub := &templateAdminRepoStub{templates: map[string]*models.Template{}}
	for _, t := range templates {
		stub.templates[t.Name] = t
	}
	return stub
}

func (r *templateAdminRepoStub) List(ctx context.Context) ([]models.Template, error) {
	var out []models.Template
	for _, t := range r.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (r *templateAdminRepoStub) FindByName(ctx context.Context, name string) (*models.Template, error) {
	t, ok := r.templates[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *t
	return &copied, nil
}

func (r *templateAdminRepoStub) Create(ctx context.Context, template *models.Template) error {
	if template.Status == "" {
		template.Status = models.TemplateActive
	}
	copied := *template
	r.templates[template.Name] = &copied
	return nil
}

func (r *templateAdminRepoStub) ReplaceFile(ctx context.Context, name, filePath string) (*string, error) {
	t, ok := r.templates[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	old := t.FilePath
	t.FilePath = &filePath
	return old, nil
}

func (r *templateAdminRepoStub) SetStatusManual(ctx context.Context, name string, status models.TemplateStatus, at time.Time) error {
	t, ok := r.templates[name]
	if !ok {
		return sql.ErrNoRows
	}
	t.Status = status
	t.LastManualChange = &at
	return nil
}

func (r *templateAdminRepoStub) Delete(ctx context.Context, name string) error {
	delete(r.templates, name)
	return nil
}

func templateUpload() DocumentUpload {
	return DocumentUpload{
		Filename: "formato.pdf",
		Size:     2048,
		MimeType: "application/pdf",
		Content:  bytes.NewReader([]byte("pdf")),
	}
}

func newTemplateFixture(templates ...*models.Template) (*TemplateService, *templateAdminRepoStub, *storageStub) {
	repo := newTemplateAdminRepoStub(templates...)
	store := &storageStub{}
	svc := NewTemplateService(repo, store, nil, &auditStub{}, zap.NewNop(), TemplateServiceConfig{})
	return svc, repo, store
}

func TestUploadCreatesTemplate(t *testing.T) {
	svc, repo, store := newTemplateFixture()

	template, err := svc.Upload(context.Background(), "Carta", templateUpload(), adminClaims())
	require.NoError(t, err)

	assert.Equal(t, models.TemplateActive, template.Status)
	require.NotNil(t, template.FilePath)
	assert.Len(t, store.saved, 1)
	assert.Contains(t, repo.templates, "Carta")
}

func TestUploadReplacesFileAndRemovesOld(t *testing.T) {
	oldPath := "templates/old.pdf"
	svc, repo, store := newTemplateFixture(&models.Template{Name: "Carta", FilePath: &oldPath, Status: models.TemplateActive})

	template, err := svc.Upload(context.Background(), "Carta", templateUpload(), adminClaims())
	require.NoError(t, err)

	require.NotNil(t, template.FilePath)
	assert.NotEqual(t, oldPath, *template.FilePath)
	// Old file removed only after the row points at the new one.
	assert.Equal(t, []string{oldPath}, store.deleted)
	assert.Equal(t, *repo.templates["Carta"].FilePath, *template.FilePath)
}

func TestUploadRejectsEmptyName(t *testing.T) {
	svc, _, store := newTemplateFixture()

	_, err := svc.Upload(context.Background(), "   ", templateUpload(), adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.saved)
}

func TestUploadRejectsDisallowedMime(t *testing.T) {
	repo := newTemplateAdminRepoStub()
	svc := NewTemplateService(repo, &storageStub{}, nil, nil, zap.NewNop(), TemplateServiceConfig{
		AllowedMIMEs: []string{"application/pdf"},
	})

	up := templateUpload()
	up.MimeType = "application/x-msdownload"
	_, err := svc.Upload(context.Background(), "Carta", up, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSetStatusRecordsManualTimestamp(t *testing.T) {
	svc, repo, _ := newTemplateFixture(&models.Template{Name: "Carta", Status: models.TemplateActive})
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }

	template, err := svc.SetStatus(context.Background(), "Carta", SetTemplateStatusRequest{Status: models.TemplateBlocked}, adminClaims())
	require.NoError(t, err)

	assert.Equal(t, models.TemplateBlocked, template.Status)
	require.NotNil(t, repo.templates["Carta"].LastManualChange)
	assert.True(t, repo.templates["Carta"].LastManualChange.Equal(at))
}

func TestSetStatusUnknownTemplate(t *testing.T) {
	svc, _, _ := newTemplateFixture()

	_, err := svc.SetStatus(context.Background(), "Desconocido", SetTemplateStatusRequest{Status: models.TemplateBlocked}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSetStatusRejectsInvalidValue(t *testing.T) {
	svc, _, _ := newTemplateFixture(&models.Template{Name: "Carta", Status: models.TemplateActive})

	_, err := svc.SetStatus(context.Background(), "Carta", SetTemplateStatusRequest{Status: "PAUSED"}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteTemplateRemovesFile(t *testing.T) {
	path := "templates/a.pdf"
	svc, repo, store := newTemplateFixture(&models.Template{Name: "Carta", FilePath: &path, Status: models.TemplateActive})

	require.NoError(t, svc.Delete(context.Background(), "Carta", adminClaims()))
	assert.Empty(t, repo.templates)
	assert.Equal(t, []string{path}, store.deleted)
}
