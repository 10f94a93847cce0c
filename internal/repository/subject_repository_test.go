package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var subjectRowColumns = []string{"id", "code", "name", "course", "year_level", "semester", "units", "lec_hours", "lab_hours", "prerequisites", "allowed_status"}

func TestSubjectRepositoryListByScopeFiltersSemesterBucket(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	rows := sqlmock.NewRows(subjectRowColumns).
		AddRow("sub-1", "CC102", "Programming 2", "BSIT", 1, "2nd Semester", 3.0, 2.0, 3.0, "CC101", "").
		AddRow("sub-2", "GE101", "Understanding the Self", "BSIT", 1, "1st Semester", 3.0, 3.0, 0.0, "None", "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM curriculum_subjects WHERE UPPER(TRIM(course)) = ANY($1) AND year_level = $2 ORDER BY code")).
		WithArgs(sqlmock.AnyArg(), 1).
		WillReturnRows(rows)

	subjects, err := repo.ListByScope(context.Background(), []string{"bsit", "BS-IT"}, 1, "second")
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "CC102", subjects[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryFindByCodes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	rows := sqlmock.NewRows(subjectRowColumns).
		AddRow("sub-1", "CC 101", "Programming 1", "BSIT", 1, "1st", 3.0, 2.0, 3.0, "", "")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE UPPER(REPLACE(code, ' ', '')) = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	subjects, err := repo.FindByCodes(context.Background(), []string{"cc 101"})
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, 3.0, subjects[0].Units)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryFindByCodesEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	subjects, err := NewSubjectRepository(db).FindByCodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, subjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}
