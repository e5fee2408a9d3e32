package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"label-service/models"
	"label-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestPrintRunCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPrintRunRepository(gormDB)

	now := time.Now().UTC()
	run := &models.PrintRun{
		ID:            uuid.New(),
		CourierCode:   "gls",
		Status:        models.RunStatusCompleted,
		ArtifactPath:  "labels/batch/20260829T101500-gls.pdf",
		BatchCount:    2,
		LabelsPerPage: 3,
		TotalPages:    4,
		CreatedAt:     now,
		ExpiresAt:     now.Add(30 * 24 * time.Hour),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "print_runs"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), run)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrintRunFindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPrintRunRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "print_runs"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	run, err := repo.FindByID(context.Background(), uuid.New())
	assert.Nil(t, run)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPrintRunFindAll_Paginates(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPrintRunRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "print_runs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "courier_code", "status", "total_pages", "created_at", "expires_at"}).
		AddRow(uuid.New(), "gls", models.RunStatusCompleted, 2, now, now.Add(time.Hour)).
		AddRow(uuid.New(), "dpd", models.RunStatusPartial, 1, now.Add(-time.Minute), now.Add(time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "print_runs"`)).
		WillReturnRows(rows)

	runs, total, err := repo.FindAll(context.Background(), 1, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(12), total)
	assert.Len(t, runs, 2)
	assert.Equal(t, "gls", runs[0].CourierCode)
}
