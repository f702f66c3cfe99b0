package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/practicas-api/internal/models"
)

func TestTemplateRepositorySetStatusManual(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE templates SET status = $2, last_manual_change = $3, updated_at = $3 WHERE name = $1")).
		WithArgs("Carta", models.TemplateBlocked, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetStatusManual(context.Background(), "Carta", models.TemplateBlocked, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositorySetStatusManualMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE templates SET status = $2, last_manual_change = $3, updated_at = $3 WHERE name = $1")).
		WithArgs("Desconocido", models.TemplateActive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatusManual(context.Background(), "Desconocido", models.TemplateActive, time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryCascadeStatusApplied(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE templates SET status = $2, updated_at = $3 WHERE name = $1 AND last_manual_change IS NOT DISTINCT FROM $4")).
		WithArgs("Carta", models.TemplateBlocked, sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.CascadeStatus(context.Background(), "Carta", models.TemplateBlocked, nil)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryCascadeStatusLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	observed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE templates SET status = $2, updated_at = $3 WHERE name = $1 AND last_manual_change IS NOT DISTINCT FROM $4")).
		WithArgs("Carta", models.TemplateActive, sqlmock.AnyArg(), observed).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.CascadeStatus(context.Background(), "Carta", models.TemplateActive, &observed)
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryReplaceFile(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_path FROM templates WHERE name = $1 FOR UPDATE")).
		WithArgs("Carta").
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("templates/old.pdf"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE templates SET file_path = $2, updated_at = $3 WHERE name = $1")).
		WithArgs("Carta", "templates/new.pdf", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	oldPath, err := repo.ReplaceFile(context.Background(), "Carta", "templates/new.pdf")
	require.NoError(t, err)
	require.NotNil(t, oldPath)
	require.Equal(t, "templates/old.pdf", *oldPath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryFindByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"name", "file_path", "status", "last_manual_change", "created_at", "updated_at"}).
		AddRow("Carta", "templates/a.pdf", "ACTIVE", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, file_path, status, last_manual_change, created_at, updated_at FROM templates WHERE name = $1")).
		WithArgs("Carta").
		WillReturnRows(rows)

	template, err := repo.FindByName(context.Background(), "Carta")
	require.NoError(t, err)
	require.Equal(t, models.TemplateActive, template.Status)
	require.Nil(t, template.LastManualChange)
	require.NoError(t, mock.ExpectationsWereMet())
}
