package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/practicas-api/internal/models"
	appErrors "github.com/noah-isme/practicas-api/pkg/errors"
)

type periodRepository interface {
	List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, int, error)
	FindByID(ctx context.Context, id int64) (*models.Period, error)
	FindLatest(ctx context.Context) (*models.Period, error)
	Create(ctx context.Context, period *models.Period) error
	Update(ctx context.Context, period *models.Period) error
	Delete(ctx context.Context, id int64) error
	CountProcesses(ctx context.Context, id int64) (int, error)
}

// CreatePeriodRequest carries the fields for a new academic period.
type CreatePeriodRequest struct {
	Year      int                `json:"year" validate:"required,min=2000,max=2100"`
	Phase     models.PeriodPhase `json:"phase" validate:"required,oneof=ENERO-JUNIO AGOSTO-DICIEMBRE VERANO"`
	StartDate string             `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string             `json:"end_date" validate:"required,datetime=2006-01-02"`
	EndTime   string             `json:"end_time" validate:"omitempty,datetime=15:04:05"`
	Active    bool               `json:"active"`
}

// UpdatePeriodRequest carries a partial period update.
type UpdatePeriodRequest struct {
	Year      *int                `json:"year" validate:"omitempty,min=2000,max=2100"`
	Phase     *models.PeriodPhase `json:"phase" validate:"omitempty,oneof=ENERO-JUNIO AGOSTO-DICIEMBRE VERANO"`
	StartDate *string             `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string             `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	EndTime   *string             `json:"end_time" validate:"omitempty,datetime=15:04:05"`
	Active    *bool               `json:"active"`
}

// PeriodService manages academic periods.
type PeriodService struct {
	periods  periodRepository
	audit    auditRecorder
	validate *validator.Validate
	logger   *zap.Logger
}

// NewPeriodService constructs a period service.
func NewPeriodService(periods periodRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{periods: periods, audit: audit, validate: validate, logger: logger}
}

// List returns periods matching the filter plus the total count.
func (s *PeriodService) List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, int, error) {
	periods, total, err := s.periods.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list periods")
	}
	return periods, total, nil
}

// Get loads a period by identifier.
func (s *PeriodService) Get(ctx context.Context, id int64) (*models.Period, error) {
	period, err := s.periods.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	return period, nil
}

// Current returns the reference period, the one with the highest identifier.
func (s *PeriodService) Current(ctx context.Context) (*models.Period, error) {
	period, err := s.periods.FindLatest(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no periods registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current period")
	}
	return period, nil
}

// Create registers a new academic period.
func (s *PeriodService) Create(ctx context.Context, req CreatePeriodRequest, actor *models.JWTClaims) (*models.Period, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	startDate, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return nil, err
	}
	endDate, err := parseDate(req.EndDate, "end_date")
	if err != nil {
		return nil, err
	}
	if !startDate.Before(endDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}

	endTime := req.EndTime
	if endTime == "" {
		endTime = "23:59:59"
	}

	period := &models.Period{
		Year:      req.Year,
		Phase:     req.Phase,
		StartDate: startDate,
		EndDate:   endDate,
		EndTime:   endTime,
		Active:    req.Active,
	}
	if err := s.periods.Create(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create period")
	}

	s.recordAudit(actor, models.AuditActionPeriodCreate, period.ID, nil)
	return period, nil
}

// Update applies a partial update to a period.
func (s *PeriodService) Update(ctx context.Context, id int64, req UpdatePeriodRequest, actor *models.JWTClaims) (*models.Period, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	period, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Year != nil {
		period.Year = *req.Year
	}
	if req.Phase != nil {
		period.Phase = *req.Phase
	}
	if req.StartDate != nil {
		startDate, err := parseDate(*req.StartDate, "start_date")
		if err != nil {
			return nil, err
		}
		period.StartDate = startDate
	}
	if req.EndDate != nil {
		endDate, err := parseDate(*req.EndDate, "end_date")
		if err != nil {
			return nil, err
		}
		period.EndDate = endDate
	}
	if req.EndTime != nil {
		period.EndTime = *req.EndTime
	}
	if req.Active != nil {
		period.Active = *req.Active
	}

	if !period.StartDate.Before(period.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}

	if err := s.periods.Update(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update period")
	}

	s.recordAudit(actor, models.AuditActionPeriodUpdate, period.ID, nil)
	return period, nil
}

// Delete removes a period. Active periods and periods with registered
// processes cannot be deleted.
func (s *PeriodService) Delete(ctx context.Context, id int64, actor *models.JWTClaims) error {
	period, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if period.Active {
		return appErrors.Clone(appErrors.ErrConflict, "active periods cannot be deleted")
	}

	processes, err := s.periods.CountProcesses(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count period processes")
	}
	if processes > 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("period has %d registered processes", processes))
	}

	if err := s.periods.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete period")
	}

	s.recordAudit(actor, models.AuditActionPeriodDelete, id, nil)
	return nil
}

func parseDate(value, field string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must use the 2006-01-02 format", field))
	}
	return parsed, nil
}

func (s *PeriodService) recordAudit(actor *models.JWTClaims, action string, id int64, payload []byte) {
	if s.audit == nil || actor == nil {
		return
	}
	resourceID := fmt.Sprintf("%d", id)
	s.audit.Record(&models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "period",
		ResourceID: &resourceID,
		NewValues:  payload,
	})
}
