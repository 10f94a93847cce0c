package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/models"
)

var sectionRowColumns = []string{"id", "code", "course", "year_level", "school_year", "semester", "max_regular", "max_irregular", "regular_count", "irregular_count"}

var defaultQuota = models.Quota{MaxRegular: 35, MaxIrregular: 5}

func expectLockedSection(mock sqlmock.Sqlmock, regular, irregular int) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM sections WHERE id = $1 FOR UPDATE")).
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows(sectionRowColumns).
			AddRow("sec-1", "BSIT-2A", "BSIT", 2, "2024-2025", "1st", nil, nil, regular, irregular))
}

func expectActiveCount(mock sqlmock.Sqlmock, count int) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollment_records WHERE section_id = $1 AND student_id = $2 AND status = $3")).
		WithArgs("sec-1", "stu-1", "ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestCapacityRepositoryTryReserveIncrementsTypeCounter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCapacityRepository(db, defaultQuota)

	mock.ExpectBegin()
	expectLockedSection(mock, 35, 4)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM section_reservations")).
		WithArgs("sec-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO section_reservations")).
		WithArgs("sec-1", "stu-1", models.StudentTypeIrregular, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections SET regular_count = $1, irregular_count = $2 WHERE id = $3")).
		WithArgs(35, 5, "sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := repo.TryReserve(context.Background(), "sec-1", "stu-1", models.StudentTypeIrregular)
	require.NoError(t, err)
	assert.True(t, outcome.Reserved)
	assert.Equal(t, models.Occupancy{Regular: 35, Irregular: 5}, outcome.Occupancy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityRepositoryTryReserveStoresCanonicalType(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCapacityRepository(db, defaultQuota)

	mock.ExpectBegin()
	expectLockedSection(mock, 35, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM section_reservations")).
		WithArgs("sec-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO section_reservations")).
		WithArgs("sec-1", "stu-1", "IRREGULAR", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections SET regular_count = $1, irregular_count = $2 WHERE id = $3")).
		WithArgs(35, 1, "sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := repo.TryReserve(context.Background(), "sec-1", "stu-1", models.StudentType("irregular"))
	require.NoError(t, err)
	assert.True(t, outcome.Reserved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityRepositoryTryReserveFullRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCapacityRepository(db, defaultQuota)

	mock.ExpectBegin()
	expectLockedSection(mock, 35, 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM section_reservations")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	outcome, err := repo.TryReserve(context.Background(), "sec-1", "stu-1", models.StudentTypeRegular)
	require.NoError(t, err)
	assert.False(t, outcome.Reserved)
	assert.Equal(t, models.CapacityKindRegular, outcome.Full)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityRepositoryTryReserveAlreadyHeld(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCapacityRepository(db, defaultQuota)

	mock.ExpectBegin()
	expectLockedSection(mock, 10, 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM section_reservations")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	outcome, err := repo.TryReserve(context.Background(), "sec-1", "stu-1", models.StudentTypeRegular)
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyHeld)
	assert.False(t, outcome.Reserved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityRepositoryReleaseDecrements(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCapacityRepository(db, defaultQuota)

	mock.ExpectBegin()
	expectLockedSection(mock, 12, 3)
	expectActiveCount(mock, 0)
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM section_reservations WHERE section_id = $1 AND student_id = $2 RETURNING student_type")).
		WithArgs("sec-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_type"}).AddRow("REGULAR"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections SET regular_count")).
		WithArgs(11, 3, "sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	released, err := repo.Release(context.Background(), "sec-1", "stu-1")
	require.NoError(t, err)
	assert.True(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityRepositoryReleaseWithoutSeatIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCapacityRepository(db, defaultQuota)

	mock.ExpectBegin()
	expectLockedSection(mock, 12, 3)
	expectActiveCount(mock, 0)
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM section_reservations")).
		WillReturnRows(sqlmock.NewRows([]string{"student_type"}))
	mock.ExpectRollback()

	released, err := repo.Release(context.Background(), "sec-1", "stu-1")
	require.NoError(t, err)
	assert.False(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityRepositoryReleaseKeepsSeatWhileEnrolled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCapacityRepository(db, defaultQuota)

	mock.ExpectBegin()
	expectLockedSection(mock, 12, 3)
	expectActiveCount(mock, 1)
	mock.ExpectRollback()

	released, err := repo.Release(context.Background(), "sec-1", "stu-1")
	require.NoError(t, err)
	assert.False(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityRepositoryReleaseReadsStoredTypeCaseInsensitively(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCapacityRepository(db, defaultQuota)

	mock.ExpectBegin()
	expectLockedSection(mock, 12, 3)
	expectActiveCount(mock, 0)
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM section_reservations")).
		WillReturnRows(sqlmock.NewRows([]string{"student_type"}).AddRow("irregular"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections SET regular_count")).
		WithArgs(12, 2, "sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	released, err := repo.Release(context.Background(), "sec-1", "stu-1")
	require.NoError(t, err)
	assert.True(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityRepositoryTryReserveLockFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCapacityRepository(db, defaultQuota)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	_, err := repo.TryReserve(context.Background(), "sec-1", "stu-1", models.StudentTypeRegular)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacityRepositoryCapacity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCapacityRepository(db, defaultQuota)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sections WHERE id = $1")).
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows(sectionRowColumns).
			AddRow("sec-1", "BSIT-2A", "BSIT", 2, "2024-2025", "1st", 30, nil, 28, 5))

	capacity, err := repo.Capacity(context.Background(), "sec-1")
	require.NoError(t, err)
	assert.Equal(t, models.Quota{MaxRegular: 30, MaxIrregular: 5}, capacity.Quota)
	assert.Equal(t, models.Occupancy{Regular: 2, Irregular: 0}, capacity.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}
