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
	appErrors "github.com/noah-isme/practicas-api/pkg/errors"
)

type periodAdminRepoStub struct {
	periods   map[int64]*models.Period
	processes map[int64]int
	nextID    int64
}

func newPeriodAdminRepoStub(periods ...*models.Period) *periodAdminRepoStub {
	stub := &periodAdminRepoStub{
		periods:   map[int64]*models.Period{},
		processes: map[int64]int{},
		nextID:    1,
	}
	for _, p := range periods {
		stub.periods[p.ID] = p
		if p.ID >= stub.nextID {
			stub.nextID = p.ID + 1
		}
	}
	return stub
}

func (r *periodAdminRepoStub) List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, int, error) {
	var out []models.Period
	for _, p := range r.periods {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *periodAdminRepoStub) FindByID(ctx context.Context, id int64) (*models.Period, error) {
	p, ok := r.periods[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (r *periodAdminRepoStub) FindLatest(ctx context.Context) (*models.Period, error) {
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

func (r *periodAdminRepoStub) Create(ctx context.Context, period *models.Period) error {
	period.ID = r.nextID
	r.nextID++
	copied := *period
	r.periods[period.ID] = &copied
	return nil
}

func (r *periodAdminRepoStub) Update(ctx context.Context, period *models.Period) error {
	if _, ok := r.periods[period.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *period
	r.periods[period.ID] = &copied
	return nil
}

func (r *periodAdminRepoStub) Delete(ctx context.Context, id int64) error {
	delete(r.periods, id)
	return nil
}

func (r *periodAdminRepoStub) CountProcesses(ctx context.Context, id int64) (int, error) {
	return r.processes[id], nil
}

func newPeriodFixture(periods ...*models.Period) (*PeriodService, *periodAdminRepoStub) {
	repo := newPeriodAdminRepoStub(periods...)
	return NewPeriodService(repo, &auditStub{}, nil, zap.NewNop()), repo
}

func TestCreatePeriod(t *testing.T) {
	svc, repo := newPeriodFixture()

	period, err := svc.Create(context.Background(), CreatePeriodRequest{
		Year:      2024,
		Phase:     models.PhaseJanJun,
		StartDate: "2024-01-08",
		EndDate:   "2024-06-14",
		Active:    true,
	}, adminClaims())
	require.NoError(t, err)

	assert.NotZero(t, period.ID)
	assert.Equal(t, "23:59:59", period.EndTime)
	assert.Contains(t, repo.periods, period.ID)
}

func TestCreatePeriodRejectsInvertedDates(t *testing.T) {
	svc, repo := newPeriodFixture()

	_, err := svc.Create(context.Background(), CreatePeriodRequest{
		Year:      2024,
		Phase:     models.PhaseJanJun,
		StartDate: "2024-06-14",
		EndDate:   "2024-01-08",
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.periods)
}

func TestCreatePeriodRejectsUnknownPhase(t *testing.T) {
	svc, _ := newPeriodFixture()

	_, err := svc.Create(context.Background(), CreatePeriodRequest{
		Year:      2024,
		Phase:     "TRIMESTRE",
		StartDate: "2024-01-08",
		EndDate:   "2024-06-14",
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdatePeriodPartial(t *testing.T) {
	start, _ := time.Parse("2006-01-02", "2024-01-08")
	end, _ := time.Parse("2006-01-02", "2024-06-14")
	svc, repo := newPeriodFixture(&models.Period{
		ID: 1, Year: 2024, Phase: models.PhaseJanJun,
		StartDate: start, EndDate: end, EndTime: "23:59:59", Active: true,
	})

	newEnd := "2024-06-30"
	period, err := svc.Update(context.Background(), 1, UpdatePeriodRequest{EndDate: &newEnd}, adminClaims())
	require.NoError(t, err)

	assert.Equal(t, "2024-06-30", period.EndDate.Format("2006-01-02"))
	assert.Equal(t, 2024, repo.periods[1].Year)
}

func TestDeleteActivePeriodRejected(t *testing.T) {
	svc, repo := newPeriodFixture(&models.Period{ID: 1, Active: true})

	err := svc.Delete(context.Background(), 1, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Contains(t, repo.periods, int64(1))
}

func TestDeletePeriodWithProcessesRejected(t *testing.T) {
	svc, repo := newPeriodFixture(&models.Period{ID: 1, Active: false})
	repo.processes[1] = 3

	err := svc.Delete(context.Background(), 1, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDeleteInactivePeriod(t *testing.T) {
	svc, repo := newPeriodFixture(&models.Period{ID: 1, Active: false})

	require.NoError(t, svc.Delete(context.Background(), 1, adminClaims()))
	assert.Empty(t, repo.periods)
}

func TestCurrentReturnsHighestID(t *testing.T) {
	svc, _ := newPeriodFixture(
		&models.Period{ID: 3, Active: false},
		&models.Period{ID: 5, Active: true},
		&models.Period{ID: 4, Active: false},
	)

	period, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), period.ID)
}

func TestCurrentWithoutPeriods(t *testing.T) {
	svc, _ := newPeriodFixture()

	_, err := svc.Current(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
