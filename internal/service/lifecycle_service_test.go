package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicas-api/internal/models"
)

type periodRepoStub struct {
	periods map[int64]*models.Period

	listErr       error
	deactivateErr error
	deactivations []int64
}

func newPeriodRepoStub(periods ...*models.Period) *periodRepoStub {
	stub := &periodRepoStub{periods: map[int64]*models.Period{}}
	for _, p := range periods {
		stub.periods[p.ID] = p
	}
	return stub
}

func (r *periodRepoStub) ListActive(ctx context.Context) ([]models.Period, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var active []models.Period
	for _, p := range r.periods {
		if p.Active {
			active = append(active, *p)
		}
	}
	return active, nil
}

func (r *periodRepoStub) Deactivate(ctx context.Context, id int64) error {
	if r.deactivateErr != nil {
		return r.deactivateErr
	}
	if p, ok := r.periods[id]; ok && p.Active {
		p.Active = false
		r.deactivations = append(r.deactivations, id)
	}
	return nil
}

func (r *periodRepoStub) FindLatest(ctx context.Context) (*models.Period, error) {
	var latest *models.Period
	for _, p := range r.periods {
		if latest == nil || p.ID > latest.ID {
			latest = p
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	copied := *latest
	return &copied, nil
}

type templateRepoStub struct {
	templates map[string]*models.Template

	// manualDuringRun simulates an administrator toggle landing between the
	// run's read and its compare-and-swap write.
	manualDuringRun map[string]time.Time

	cascades []string
}

func newTemplateRepoStub(templates ...*models.Template) *templateRepoStub {
	stub := &templateRepoStub{
		templates:       map[string]*models.Template{},
		manualDuringRun: map[string]time.Time{},
	}
	for _, t := range templates {
		stub.templates[t.Name] = t
	}
	return stub
}

func (r *templateRepoStub) List(ctx context.Context) ([]models.Template, error) {
	var out []models.Template
	for _, t := range r.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (r *templateRepoStub) CascadeStatus(ctx context.Context, name string, status models.TemplateStatus, observed *time.Time) (bool, error) {
	t, ok := r.templates[name]
	if !ok {
		return false, nil
	}
	if at, ok := r.manualDuringRun[name]; ok {
		t.LastManualChange = &at
	}
	if !timePtrEqual(t.LastManualChange, observed) {
		return false, nil
	}
	t.Status = status
	r.cascades = append(r.cascades, name)
	return true, nil
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func newLifecycleForTest(periods *periodRepoStub, templates *templateRepoStub, at time.Time) *LifecycleService {
	svc := NewLifecycleService(periods, templates, nil, nil, zap.NewNop(), LifecycleServiceConfig{
		Interval:    time.Minute,
		GraceWindow: 24 * time.Hour,
	})
	svc.now = func() time.Time { return at }
	return svc
}

func datePeriod(id int64, active bool, endDate string) *models.Period {
	end, _ := time.Parse("2006-01-02", endDate)
	return &models.Period{
		ID:      id,
		Year:    end.Year(),
		Phase:   models.PhaseJanJun,
		EndDate: end,
		EndTime: "23:59:59",
		Active:  active,
	}
}

func TestRunDeactivatesExpiredPeriod(t *testing.T) {
	clock := time.Date(2024, 2, 1, 0, 0, 1, 0, time.UTC)
	periods := newPeriodRepoStub(datePeriod(10, true, "2024-01-31"))
	svc := newLifecycleForTest(periods, newTemplateRepoStub(), clock)

	require.NoError(t, svc.Run(context.Background()))

	assert.False(t, periods.periods[10].Active)
	assert.Equal(t, []int64{10}, periods.deactivations)
}

func TestRunLeavesUnexpiredPeriodActive(t *testing.T) {
	clock := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	periods := newPeriodRepoStub(datePeriod(10, true, "2024-01-31"))
	svc := newLifecycleForTest(periods, newTemplateRepoStub(), clock)

	require.NoError(t, svc.Run(context.Background()))

	// Expiry requires the clock to be strictly past the period end.
	assert.True(t, periods.periods[10].Active)
	assert.Empty(t, periods.deactivations)
}

func TestRunIsIdempotent(t *testing.T) {
	clock := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	periods := newPeriodRepoStub(datePeriod(10, true, "2024-01-31"))
	templates := newTemplateRepoStub(&models.Template{Name: "Carta", Status: models.TemplateActive})
	svc := newLifecycleForTest(periods, templates, clock)

	require.NoError(t, svc.Run(context.Background()))
	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, []int64{10}, periods.deactivations)
	assert.Equal(t, []string{"Carta"}, templates.cascades)
	assert.Equal(t, models.TemplateBlocked, templates.templates["Carta"].Status)
}

func TestRunUsesHighestIDAsReference(t *testing.T) {
	clock := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	// Period 5 is the reference despite period 4 ending later.
	periods := newPeriodRepoStub(
		datePeriod(3, false, "2023-06-30"),
		datePeriod(5, true, "2024-12-15"),
		datePeriod(4, false, "2024-12-31"),
	)
	templates := newTemplateRepoStub(&models.Template{Name: "Carta", Status: models.TemplateBlocked})
	svc := newLifecycleForTest(periods, templates, clock)

	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, models.TemplateActive, templates.templates["Carta"].Status)
}

func TestRunCascadesBlockWhenReferenceInactive(t *testing.T) {
	clock := time.Date(2024, 2, 1, 0, 0, 1, 0, time.UTC)
	periods := newPeriodRepoStub(datePeriod(10, true, "2024-01-31"))
	templates := newTemplateRepoStub(
		&models.Template{Name: "Carta", Status: models.TemplateActive},
		&models.Template{Name: "Reporte", Status: models.TemplateActive},
	)
	svc := newLifecycleForTest(periods, templates, clock)

	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, models.TemplateBlocked, templates.templates["Carta"].Status)
	assert.Equal(t, models.TemplateBlocked, templates.templates["Reporte"].Status)
}

func TestRunRespectsManualGraceWindow(t *testing.T) {
	clock := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	manual := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	periods := newPeriodRepoStub(datePeriod(10, false, "2024-01-31"))
	templates := newTemplateRepoStub(&models.Template{
		Name:             "Carta",
		Status:           models.TemplateActive,
		LastManualChange: &manual,
	})
	svc := newLifecycleForTest(periods, templates, clock)

	require.NoError(t, svc.Run(context.Background()))

	// 12 hours since the toggle: the manual choice still wins.
	assert.Equal(t, models.TemplateActive, templates.templates["Carta"].Status)
	assert.Empty(t, templates.cascades)
}

func TestRunGraceWindowBoundaryIsStrict(t *testing.T) {
	manual := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	periods := newPeriodRepoStub(datePeriod(10, false, "2024-01-31"))

	t.Run("exactly at window", func(t *testing.T) {
		templates := newTemplateRepoStub(&models.Template{
			Name:             "Carta",
			Status:           models.TemplateActive,
			LastManualChange: &manual,
		})
		svc := newLifecycleForTest(periods, templates, manual.Add(24*time.Hour))

		require.NoError(t, svc.Run(context.Background()))
		assert.Equal(t, models.TemplateActive, templates.templates["Carta"].Status)
	})

	t.Run("past the window", func(t *testing.T) {
		templates := newTemplateRepoStub(&models.Template{
			Name:             "Carta",
			Status:           models.TemplateActive,
			LastManualChange: &manual,
		})
		svc := newLifecycleForTest(periods, templates, manual.Add(25*time.Hour))

		require.NoError(t, svc.Run(context.Background()))
		assert.Equal(t, models.TemplateBlocked, templates.templates["Carta"].Status)
		// The cascade never rewrites the manual timestamp.
		require.NotNil(t, templates.templates["Carta"].LastManualChange)
		assert.True(t, templates.templates["Carta"].LastManualChange.Equal(manual))
	})
}

func TestRunManualToggleMidRunWins(t *testing.T) {
	clock := time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)
	periods := newPeriodRepoStub(datePeriod(10, false, "2024-01-31"))
	templates := newTemplateRepoStub(&models.Template{Name: "Carta", Status: models.TemplateActive})
	templates.manualDuringRun["Carta"] = clock.Add(-time.Second)
	svc := newLifecycleForTest(periods, templates, clock)

	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, models.TemplateActive, templates.templates["Carta"].Status)
	assert.Empty(t, templates.cascades)
}

func TestRunSkipsWhenAlreadyInFlight(t *testing.T) {
	periods := newPeriodRepoStub(datePeriod(10, true, "2024-01-31"))
	svc := newLifecycleForTest(periods, newTemplateRepoStub(), time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))

	svc.inFlight.Store(true)
	require.NoError(t, svc.Run(context.Background()))

	assert.True(t, periods.periods[10].Active)
	assert.Empty(t, periods.deactivations)
}

func TestRunHandlesEmptyPeriodTable(t *testing.T) {
	svc := newLifecycleForTest(newPeriodRepoStub(), newTemplateRepoStub(), time.Now().UTC())
	require.NoError(t, svc.Run(context.Background()))
}

func TestRunAbortsOnDeactivateError(t *testing.T) {
	clock := time.Date(2024, 2, 1, 0, 0, 1, 0, time.UTC)
	periods := newPeriodRepoStub(datePeriod(10, true, "2024-01-31"))
	periods.deactivateErr = assert.AnError
	templates := newTemplateRepoStub(&models.Template{Name: "Carta", Status: models.TemplateActive})
	svc := newLifecycleForTest(periods, templates, clock)

	require.Error(t, svc.Run(context.Background()))
	assert.Empty(t, templates.cascades)
}
