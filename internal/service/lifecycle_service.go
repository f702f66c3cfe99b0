package service

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/practicas-api/internal/models"
	appErrors "github.com/noah-isme/practicas-api/pkg/errors"
)

type lifecyclePeriodRepository interface {
	ListActive(ctx context.Context) ([]models.Period, error)
	Deactivate(ctx context.Context, id int64) error
	FindLatest(ctx context.Context) (*models.Period, error)
}

type lifecycleTemplateRepository interface {
	List(ctx context.Context) ([]models.Template, error)
	CascadeStatus(ctx context.Context, name string, status models.TemplateStatus, observedManualChange *time.Time) (bool, error)
}

// LifecycleServiceConfig governs cadence and the manual-override grace window.
type LifecycleServiceConfig struct {
	Interval    time.Duration
	GraceWindow time.Duration
	RunTimeout  time.Duration
}

// LifecycleService keeps period activity and template availability
// consistent with the passage of time. Each run deactivates expired
// periods, then cascades the reference period's state onto templates that
// have not been manually toggled within the grace window.
type LifecycleService struct {
	periods   lifecyclePeriodRepository
	templates lifecycleTemplateRepository
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       LifecycleServiceConfig

	now      func() time.Time
	inFlight atomic.Bool
}

// NewLifecycleService constructs the lifecycle service.
func NewLifecycleService(periods lifecyclePeriodRepository, templates lifecycleTemplateRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg LifecycleServiceConfig) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 24 * time.Hour
	}
	return &LifecycleService{
		periods:   periods,
		templates: templates,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start boots a goroutine that executes the lifecycle run on a fixed
// cadence until the context is cancelled. A failed run is logged and left
// for the next tick to self-correct.
func (s *LifecycleService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		s.runLogged(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runLogged(ctx)
			}
		}
	}()
	s.logger.Sugar().Infow("period lifecycle job started", "interval", s.cfg.Interval, "grace_window", s.cfg.GraceWindow)
}

func (s *LifecycleService) runLogged(ctx context.Context) {
	if err := s.Run(ctx); err != nil {
		s.logger.Sugar().Errorw("period lifecycle run failed", "error", err)
	}
}

// Run executes a single lifecycle pass. Overlapping invocations are
// serialized by skipping: if a previous run is still in flight the call
// returns immediately. Every write is idempotent, so an aborted run is
// healed by the next one.
func (s *LifecycleService) Run(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("lifecycle run skipped, previous run still in flight")
		if s.metrics != nil {
			s.metrics.RecordLifecycleRun("skipped", 0)
		}
		return nil
	}
	defer s.inFlight.Store(false)

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	deactivated, cascaded, err := s.run(ctx)
	duration := time.Since(start)

	if s.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.metrics.RecordLifecycleRun(outcome, duration)
	}
	if err != nil {
		return err
	}

	if deactivated > 0 || cascaded > 0 {
		s.logger.Sugar().Infow("period lifecycle run completed",
			"periods_deactivated", deactivated,
			"templates_cascaded", cascaded,
			"duration", duration,
		)
	}
	return nil
}

func (s *LifecycleService) run(ctx context.Context) (deactivated, cascaded int, err error) {
	now := s.now()

	active, err := s.periods.ListActive(ctx)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active periods")
	}

	for _, period := range active {
		if !now.After(period.EndsAt()) {
			continue
		}
		if err := s.periods.Deactivate(ctx, period.ID); err != nil {
			return deactivated, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate expired period")
		}
		deactivated++
		s.logger.Sugar().Infow("period deactivated", "period_id", period.ID, "ended_at", period.EndsAt())
	}

	// The reference period is the one with the highest id, not the one
	// that expired most recently.
	reference, err := s.periods.FindLatest(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deactivated, 0, nil
		}
		return deactivated, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reference period")
	}

	desired := models.TemplateActive
	if !reference.Active {
		desired = models.TemplateBlocked
	}

	templates, err := s.templates.List(ctx)
	if err != nil {
		return deactivated, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load templates")
	}

	for _, template := range templates {
		// A manual toggle within the grace window wins unconditionally.
		// Cascade only when strictly more time than the window has passed;
		// a template never touched manually is always eligible.
		if template.LastManualChange != nil && now.Sub(*template.LastManualChange) <= s.cfg.GraceWindow {
			continue
		}
		if template.Status == desired {
			continue
		}
		applied, err := s.templates.CascadeStatus(ctx, template.Name, desired, template.LastManualChange)
		if err != nil {
			return deactivated, cascaded, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cascade template status")
		}
		if !applied {
			// An administrator toggled the template between our read and
			// this write; their change stands.
			s.logger.Sugar().Debugw("template cascade superseded by manual change", "template", template.Name)
			continue
		}
		cascaded++
		if s.metrics != nil {
			s.metrics.RecordTemplateCascade(string(desired))
		}
	}

	if cascaded > 0 && s.cache != nil {
		_ = s.cache.Invalidate(ctx, "template:*")
	}

	return deactivated, cascaded, nil
}
