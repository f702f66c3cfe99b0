package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicas-api/internal/models"
	appErrors "github.com/noah-isme/practicas-api/pkg/errors"
)

type docRepoStub struct {
	docs   map[int64]*models.Document
	types  map[int64]*models.DocumentType
	nextID int64
}

func newDocRepoStub() *docRepoStub {
	return &docRepoStub{
		docs:   map[int64]*models.Document{},
		types:  map[int64]*models.DocumentType{},
		nextID: 1,
	}
}

func (r *docRepoStub) FindByID(ctx context.Context, id int64) (*models.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *doc
	return &copied, nil
}

func (r *docRepoStub) FindByOwner(ctx context.Context, userID string, processID, typeID int64) (*models.Document, error) {
	for _, doc := range r.docs {
		if doc.UserID == userID && doc.ProcessID == processID && doc.TypeID == typeID {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *docRepoStub) ListByProcess(ctx context.Context, processID int64) ([]models.Document, error) {
	var out []models.Document
	for _, doc := range r.docs {
		if doc.ProcessID == processID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (r *docRepoStub) Upsert(ctx context.Context, doc *models.Document) error {
	doc.Status = models.DocumentPending
	doc.Comments = nil
	for _, existing := range r.docs {
		if existing.UserID == doc.UserID && existing.ProcessID == doc.ProcessID && existing.TypeID == doc.TypeID {
			existing.FilePath = doc.FilePath
			existing.Status = models.DocumentPending
			existing.Comments = nil
			existing.UpdatedAt = time.Now().UTC()
			doc.ID = existing.ID
			return nil
		}
	}
	doc.ID = r.nextID
	r.nextID++
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *docRepoStub) UpdateStatus(ctx context.Context, id int64, status models.DocumentStatus, comments *string) error {
	doc, ok := r.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	doc.Status = status
	doc.Comments = comments
	return nil
}

func (r *docRepoStub) Delete(ctx context.Context, id int64) error {
	delete(r.docs, id)
	return nil
}

func (r *docRepoStub) FindType(ctx context.Context, id int64) (*models.DocumentType, error) {
	dt, ok := r.types[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return dt, nil
}

func (r *docRepoStub) ListTypes(ctx context.Context) ([]models.DocumentType, error) {
	var out []models.DocumentType
	for _, dt := range r.types {
		out = append(out, *dt)
	}
	return out, nil
}

type processReaderStub struct {
	processes map[int64]*models.Process
}

func (r *processReaderStub) FindByID(ctx context.Context, id int64) (*models.Process, error) {
	p, ok := r.processes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

type templateReaderStub struct {
	templates map[string]*models.Template
}

func (r *templateReaderStub) FindByName(ctx context.Context, name string) (*models.Template, error) {
	t, ok := r.templates[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

type storageStub struct {
	saved   []string
	deleted []string
	saveErr error
}

func (s *storageStub) SaveStream(filename string, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.saved = append(s.saved, filename)
	return filename, nil
}

func (s *storageStub) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	return nil
}

type auditStub struct {
	entries []*models.AuditLog
}

func (a *auditStub) Record(log *models.AuditLog) {
	a.entries = append(a.entries, log)
}

func studentClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleStudent}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func newDocumentFixture(t *testing.T, cfg DocumentServiceConfig) (*DocumentService, *docRepoStub, *storageStub, *auditStub) {
	t.Helper()
	docs := newDocRepoStub()
	docs.types[1] = &models.DocumentType{ID: 1, Name: "Carta de presentacion"}
	processes := &processReaderStub{processes: map[int64]*models.Process{
		7: {ID: 7, UserID: "student-1", PeriodID: 1, Type: models.ProcessPracticas},
	}}
	templates := &templateReaderStub{templates: map[string]*models.Template{
		"Carta de presentacion": {Name: "Carta de presentacion", Status: models.TemplateActive},
	}}
	store := &storageStub{}
	audit := &auditStub{}
	svc := NewDocumentService(docs, processes, templates, store, nil, audit, zap.NewNop(), cfg)
	return svc, docs, store, audit
}

func upload() DocumentUpload {
	return DocumentUpload{
		Filename: "carta.pdf",
		Size:     1024,
		MimeType: "application/pdf",
		Content:  bytes.NewReader([]byte("pdf")),
	}
}

func TestSubmitCreatesPendingDocument(t *testing.T) {
	svc, docs, store, audit := newDocumentFixture(t, DocumentServiceConfig{})

	doc, err := svc.Submit(context.Background(), SubmitDocumentRequest{ProcessID: 7, TypeID: 1}, upload(), studentClaims("student-1"))
	require.NoError(t, err)

	assert.Equal(t, models.DocumentPending, doc.Status)
	assert.Nil(t, doc.Comments)
	assert.Len(t, store.saved, 1)
	assert.Len(t, docs.docs, 1)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionDocumentSubmit, audit.entries[0].Action)
}

func TestSubmitReplacementResetsReviewState(t *testing.T) {
	svc, docs, store, _ := newDocumentFixture(t, DocumentServiceConfig{})
	actor := studentClaims("student-1")

	first, err := svc.Submit(context.Background(), SubmitDocumentRequest{ProcessID: 7, TypeID: 1}, upload(), actor)
	require.NoError(t, err)

	comments := "missing signature"
	require.NoError(t, docs.UpdateStatus(context.Background(), first.ID, models.DocumentRejected, &comments))

	second, err := svc.Submit(context.Background(), SubmitDocumentRequest{ProcessID: 7, TypeID: 1}, upload(), actor)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	stored := docs.docs[first.ID]
	assert.Equal(t, models.DocumentPending, stored.Status)
	assert.Nil(t, stored.Comments)
	// The replaced file was removed after the row swap.
	assert.Equal(t, []string{first.FilePath}, store.deleted)
}

func TestSubmitForeignProcessForbidden(t *testing.T) {
	svc, _, _, _ := newDocumentFixture(t, DocumentServiceConfig{})

	_, err := svc.Submit(context.Background(), SubmitDocumentRequest{ProcessID: 7, TypeID: 1}, upload(), studentClaims("student-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitBlockedTemplateRejectedWhenGateEnforced(t *testing.T) {
	svc, _, store, _ := newDocumentFixture(t, DocumentServiceConfig{EnforceTemplateGate: true})
	svc.templates.(*templateReaderStub).templates["Carta de presentacion"].Status = models.TemplateBlocked

	_, err := svc.Submit(context.Background(), SubmitDocumentRequest{ProcessID: 7, TypeID: 1}, upload(), studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTemplateBlocked.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.saved)
}

func TestSubmitBlockedTemplateAllowedWhenGateDisabled(t *testing.T) {
	svc, _, _, _ := newDocumentFixture(t, DocumentServiceConfig{})
	svc.templates.(*templateReaderStub).templates["Carta de presentacion"].Status = models.TemplateBlocked

	_, err := svc.Submit(context.Background(), SubmitDocumentRequest{ProcessID: 7, TypeID: 1}, upload(), studentClaims("student-1"))
	require.NoError(t, err)
}

func TestSubmitOversizeFileRejected(t *testing.T) {
	svc, _, store, _ := newDocumentFixture(t, DocumentServiceConfig{MaxFileSizeBytes: 512})

	_, err := svc.Submit(context.Background(), SubmitDocumentRequest{ProcessID: 7, TypeID: 1}, upload(), studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.saved)
}

func TestApproveRequiresAdministrativeRole(t *testing.T) {
	svc, docs, _, _ := newDocumentFixture(t, DocumentServiceConfig{})
	docs.docs[1] = &models.Document{ID: 1, UserID: "student-1", ProcessID: 7, TypeID: 1, Status: models.DocumentPending}

	_, err := svc.Approve(context.Background(), 1, studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.DocumentPending, docs.docs[1].Status)
}

func TestApproveClearsComments(t *testing.T) {
	svc, docs, _, _ := newDocumentFixture(t, DocumentServiceConfig{})
	comments := "old note"
	docs.docs[1] = &models.Document{ID: 1, UserID: "student-1", ProcessID: 7, TypeID: 1, Status: models.DocumentRejected, Comments: &comments}

	doc, err := svc.Approve(context.Background(), 1, adminClaims())
	require.NoError(t, err)

	assert.Equal(t, models.DocumentApproved, doc.Status)
	assert.Nil(t, doc.Comments)
	assert.Equal(t, models.DocumentApproved, docs.docs[1].Status)
}

func TestApproveAlreadyApprovedSucceeds(t *testing.T) {
	svc, docs, _, _ := newDocumentFixture(t, DocumentServiceConfig{})
	docs.docs[1] = &models.Document{ID: 1, UserID: "student-1", ProcessID: 7, TypeID: 1, Status: models.DocumentApproved}

	_, err := svc.Approve(context.Background(), 1, adminClaims())
	require.NoError(t, err)
}

func TestRejectWithoutCommentsFails(t *testing.T) {
	svc, docs, _, _ := newDocumentFixture(t, DocumentServiceConfig{})
	docs.docs[1] = &models.Document{ID: 1, UserID: "student-1", ProcessID: 7, TypeID: 1, Status: models.DocumentPending}

	for _, comments := range []string{"", "   ", "\t\n"} {
		_, err := svc.Reject(context.Background(), 1, comments, adminClaims())
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}

	// Failed rejections leave the prior status untouched.
	assert.Equal(t, models.DocumentPending, docs.docs[1].Status)
}

func TestRejectStoresComments(t *testing.T) {
	svc, docs, _, audit := newDocumentFixture(t, DocumentServiceConfig{})
	docs.docs[1] = &models.Document{ID: 1, UserID: "student-1", ProcessID: 7, TypeID: 1, Status: models.DocumentPending}

	doc, err := svc.Reject(context.Background(), 1, "  missing signature  ", adminClaims())
	require.NoError(t, err)

	assert.Equal(t, models.DocumentRejected, doc.Status)
	require.NotNil(t, doc.Comments)
	assert.Equal(t, "missing signature", *doc.Comments)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionDocumentReject, audit.entries[0].Action)
}

func TestRejectMissingDocument(t *testing.T) {
	svc, _, _, _ := newDocumentFixture(t, DocumentServiceConfig{})

	_, err := svc.Reject(context.Background(), 99, "reason", adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteOwnerRemovesFile(t *testing.T) {
	svc, docs, store, _ := newDocumentFixture(t, DocumentServiceConfig{})
	docs.docs[1] = &models.Document{ID: 1, UserID: "student-1", ProcessID: 7, TypeID: 1, FilePath: "documents/7/a.pdf"}

	require.NoError(t, svc.Delete(context.Background(), 1, studentClaims("student-1")))
	assert.Empty(t, docs.docs)
	assert.Equal(t, []string{"documents/7/a.pdf"}, store.deleted)
}

func TestDeleteForeignDocumentForbidden(t *testing.T) {
	svc, docs, _, _ := newDocumentFixture(t, DocumentServiceConfig{})
	docs.docs[1] = &models.Document{ID: 1, UserID: "student-1", ProcessID: 7, TypeID: 1}

	err := svc.Delete(context.Background(), 1, studentClaims("student-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Len(t, docs.docs, 1)
}

func TestSubmitStorageFailureDoesNotPersist(t *testing.T) {
	svc, docs, store, _ := newDocumentFixture(t, DocumentServiceConfig{})
	store.saveErr = errors.New("disk full")

	_, err := svc.Submit(context.Background(), SubmitDocumentRequest{ProcessID: 7, TypeID: 1}, upload(), studentClaims("student-1"))
	require.Error(t, err)
	assert.Empty(t, docs.docs)
}
