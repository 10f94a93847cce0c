package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/advising-api/internal/models"
)

// ErrDuplicateActiveEnrollment reports a violation of the one-ACTIVE-record-per-subject-per-term index.
var ErrDuplicateActiveEnrollment = errors.New("active enrollment already exists for subject and term")

// ErrEnrollmentNotActive is returned when cancelling a record that is already CANCELLED.
var ErrEnrollmentNotActive = errors.New("enrollment is not active")

const uniqueViolation = "23505"

const enrollmentColumns = `id, student_id, section_id, subject_code, school_year, semester, student_type, status, created_at, cancelled_at`

// EnrollmentRepository persists enrollment records and their placeholder grades.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID fetches a single record.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_records WHERE id = $1`, enrollmentColumns)
	var record models.EnrollmentRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListActiveByStudent returns every ACTIVE record of a student across terms.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_records WHERE student_id = $1 AND status = $2 ORDER BY school_year, semester, subject_code`, enrollmentColumns)
	var records []models.EnrollmentRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return records, nil
}

// ListSectionHolders returns the distinct students holding an ACTIVE record in a section.
func (r *EnrollmentRepository) ListSectionHolders(ctx context.Context, sectionID string) ([]models.SectionHolder, error) {
	const query = `SELECT DISTINCT section_id, student_id, student_type FROM enrollment_records WHERE section_id = $1 AND status = $2`
	var holders []models.SectionHolder
	if err := r.db.SelectContext(ctx, &holders, query, sectionID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list section holders: %w", err)
	}
	return holders, nil
}

// CreateBatch writes every enrollment record and placeholder grade in a single transaction.
// Either all rows commit or none do.
func (r *EnrollmentRepository) CreateBatch(ctx context.Context, records []models.EnrollmentRecord, grades []models.GradeRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertEnrollment = `INSERT INTO enrollment_records (id, student_id, section_id, subject_code, school_year, semester, student_type, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, rec := range records {
		if _, err = tx.ExecContext(ctx, insertEnrollment, rec.ID, rec.StudentID, rec.SectionID, rec.SubjectCode, rec.SchoolYear, rec.Semester, rec.StudentType, rec.Status, rec.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				err = fmt.Errorf("%w: %s", ErrDuplicateActiveEnrollment, rec.SubjectCode)
				return err
			}
			return fmt.Errorf("insert enrollment %s: %w", rec.SubjectCode, err)
		}
	}

	const insertGrade = `INSERT INTO grade_records (id, student_id, enrollment_id, subject_code, school_year, semester, units, grade, remarks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for _, g := range grades {
		if _, err = tx.ExecContext(ctx, insertGrade, g.ID, g.StudentID, g.EnrollmentID, g.SubjectCode, g.SchoolYear, g.Semester, g.Units, g.Grade, g.Remarks, g.CreatedAt, g.UpdatedAt); err != nil {
			return fmt.Errorf("insert grade placeholder %s: %w", g.SubjectCode, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment batch: %w", err)
	}
	return nil
}

// Cancel marks an ACTIVE record CANCELLED and reports how many ACTIVE records the student still
// holds in the same section and term.
func (r *EnrollmentRepository) Cancel(ctx context.Context, id string) (record *models.EnrollmentRecord, remaining int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin cancel transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	selectQuery := fmt.Sprintf(`SELECT %s FROM enrollment_records WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	var current models.EnrollmentRecord
	if err = tx.GetContext(ctx, &current, selectQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("lock enrollment: %w", err)
	}
	if !current.Active() {
		err = ErrEnrollmentNotActive
		return nil, 0, err
	}

	now := time.Now().UTC()
	const updateQuery = `UPDATE enrollment_records SET status = $1, cancelled_at = $2 WHERE id = $3`
	if _, err = tx.ExecContext(ctx, updateQuery, models.EnrollmentStatusCancelled, now, id); err != nil {
		return nil, 0, fmt.Errorf("cancel enrollment: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM enrollment_records WHERE student_id = $1 AND section_id = $2 AND school_year = $3 AND semester = $4 AND status = $5`
	if err = tx.GetContext(ctx, &remaining, countQuery, current.StudentID, current.SectionID, current.SchoolYear, current.Semester, models.EnrollmentStatusActive); err != nil {
		return nil, 0, fmt.Errorf("count remaining enrollments: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit cancel: %w", err)
	}
	current.Status = models.EnrollmentStatusCancelled
	current.CancelledAt = &now
	return &current, remaining, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}
