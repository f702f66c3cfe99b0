package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/practicas-api/internal/models"
	appErrors "github.com/noah-isme/practicas-api/pkg/errors"
	"github.com/noah-isme/practicas-api/pkg/export"
)

type processRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Process, error)
	ListByUser(ctx context.Context, userID string) ([]models.Process, error)
	Create(ctx context.Context, process *models.Process) error
}

type processPeriodReader interface {
	FindByID(ctx context.Context, id int64) (*models.Period, error)
}

type processDocumentReader interface {
	ListByProcess(ctx context.Context, processID int64) ([]models.Document, error)
	ListTypes(ctx context.Context) ([]models.DocumentType, error)
}

type checklistRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// CreateProcessRequest registers a student into a period.
type CreateProcessRequest struct {
	PeriodID int64              `json:"period_id" validate:"required"`
	Type     models.ProcessType `json:"type" validate:"required,oneof=PRACTICAS SERVICIO_SOCIAL"`
}

// ProcessService manages student processes and their document checklist.
type ProcessService struct {
	processes processRepository
	periods   processPeriodReader
	documents processDocumentReader
	exporter  checklistRenderer
	logger    *zap.Logger
}

// NewProcessService constructs a process service.
func NewProcessService(processes processRepository, periods processPeriodReader, documents processDocumentReader, exporter checklistRenderer, logger *zap.Logger) *ProcessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessService{
		processes: processes,
		periods:   periods,
		documents: documents,
		exporter:  exporter,
		logger:    logger,
	}
}

// Create registers a process for the actor in the given period. Only active
// periods accept new registrations.
func (s *ProcessService) Create(ctx context.Context, req CreateProcessRequest, actor *models.JWTClaims) (*models.Process, error) {
	if req.PeriodID == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period_id is required")
	}
	if req.Type != models.ProcessPracticas && req.Type != models.ProcessServicioSocial {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be PRACTICAS or SERVICIO_SOCIAL")
	}

	period, err := s.periods.FindByID(ctx, req.PeriodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	if !period.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "period is not accepting registrations")
	}

	process := &models.Process{
		UserID:   actor.UserID,
		PeriodID: req.PeriodID,
		Type:     req.Type,
	}
	if err := s.processes.Create(ctx, process); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create process")
	}
	return process, nil
}

// Get loads a process, visible to its owner, advisors and administrators.
func (s *ProcessService) Get(ctx context.Context, id int64, actor *models.JWTClaims) (*models.Process, error) {
	process, err := s.processes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "process not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load process")
	}
	if !actor.Role.IsAdministrative() && !isAdvisor(actor.Role) && process.UserID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return process, nil
}

// ListMine returns the actor's processes.
func (s *ProcessService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Process, error) {
	processes, err := s.processes.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list processes")
	}
	return processes, nil
}

// ChecklistPDF renders the document checklist of a process as a PDF: one
// row per document type with the submission's current review state.
func (s *ProcessService) ChecklistPDF(ctx context.Context, processID int64, actor *models.JWTClaims) ([]byte, string, error) {
	process, err := s.Get(ctx, processID, actor)
	if err != nil {
		return nil, "", err
	}

	types, err := s.documents.ListTypes(ctx)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list document types")
	}
	docs, err := s.documents.ListByProcess(ctx, processID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}

	byType := make(map[int64]models.Document, len(docs))
	for _, doc := range docs {
		byType[doc.TypeID] = doc
	}

	dataset := export.Dataset{
		Headers: []string{"Documento", "Estado", "Comentarios", "Actualizado"},
	}
	for _, dt := range types {
		row := map[string]string{
			"Documento":   dt.Name,
			"Estado":      "SIN ENTREGAR",
			"Comentarios": "",
			"Actualizado": "",
		}
		if doc, ok := byType[dt.ID]; ok {
			row["Estado"] = string(doc.Status)
			if doc.Comments != nil {
				row["Comentarios"] = *doc.Comments
			}
			row["Actualizado"] = doc.UpdatedAt.Format("2006-01-02 15:04")
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	title := fmt.Sprintf("Checklist de documentos - proceso %d (%s)", process.ID, process.Type)
	payload, err := s.exporter.Render(dataset, title)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render checklist")
	}

	filename := fmt.Sprintf("checklist-proceso-%d.pdf", process.ID)
	return payload, filename, nil
}
