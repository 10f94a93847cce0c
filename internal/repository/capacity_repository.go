package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

// CapacityRepository is the Postgres capacity ledger. Each reserve or release locks the section
// row so decisions for one section are serialised while other sections proceed independently.
type CapacityRepository struct {
	db       *sqlx.DB
	defaults models.Quota
}

// NewCapacityRepository constructs a CapacityRepository using defaults for sections without quotas.
func NewCapacityRepository(db *sqlx.DB, defaults models.Quota) *CapacityRepository {
	return &CapacityRepository{db: db, defaults: defaults}
}

const lockSectionQuery = `SELECT id, code, course, year_level, school_year, semester, max_regular, max_irregular, regular_count, irregular_count
FROM sections WHERE id = $1 FOR UPDATE`

// TryReserve takes one seat for the student unless the student already holds one or a quota is full.
func (r *CapacityRepository) TryReserve(ctx context.Context, sectionID, studentID string, studentType models.StudentType) (outcome models.ReserveOutcome, err error) {
	studentType = studentType.Canonical()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return outcome, fmt.Errorf("begin reserve transaction: %w", err)
	}
	defer func() {
		if err != nil || !outcome.Reserved {
			_ = tx.Rollback()
		}
	}()

	var section models.Section
	if err = tx.GetContext(ctx, &section, lockSectionQuery, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return outcome, err
		}
		return outcome, fmt.Errorf("lock section: %w", err)
	}
	current := models.Occupancy{Regular: section.RegularCount, Irregular: section.IrregularCount}

	var held int
	const heldQuery = `SELECT COUNT(*) FROM section_reservations WHERE section_id = $1 AND student_id = $2`
	if err = tx.GetContext(ctx, &held, heldQuery, sectionID, studentID); err != nil {
		return outcome, fmt.Errorf("check reservation: %w", err)
	}
	if held > 0 {
		return models.ReserveOutcome{AlreadyHeld: true, Occupancy: current}, nil
	}

	outcome = models.DecideReservation(section.Quota(r.defaults), current, studentType)
	if !outcome.Reserved {
		return outcome, nil
	}

	const insertQuery = `INSERT INTO section_reservations (section_id, student_id, student_type, reserved_at) VALUES ($1, $2, $3, $4)`
	if _, err = tx.ExecContext(ctx, insertQuery, sectionID, studentID, studentType, time.Now().UTC()); err != nil {
		return outcome, fmt.Errorf("insert reservation: %w", err)
	}
	if err = r.writeCounts(ctx, tx, sectionID, outcome.Occupancy); err != nil {
		return outcome, err
	}
	if err = tx.Commit(); err != nil {
		return outcome, fmt.Errorf("commit reservation: %w", err)
	}
	return outcome, nil
}

// Release returns the student's seat. Releasing a seat that is not held is a no-op, and the seat
// is kept while the student still has an ACTIVE record in the section. The count runs under the
// section lock so it serialises with reservations and releases of the same section.
func (r *CapacityRepository) Release(ctx context.Context, sectionID, studentID string) (released bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin release transaction: %w", err)
	}
	defer func() {
		if !released {
			_ = tx.Rollback()
		}
	}()

	var section models.Section
	if err = tx.GetContext(ctx, &section, lockSectionQuery, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lock section: %w", err)
	}

	var active int
	const activeQuery = `SELECT COUNT(*) FROM enrollment_records WHERE section_id = $1 AND student_id = $2 AND status = $3`
	if err = tx.GetContext(ctx, &active, activeQuery, sectionID, studentID, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("count active enrollments: %w", err)
	}
	if active > 0 {
		return false, nil
	}

	var studentType models.StudentType
	const deleteQuery = `DELETE FROM section_reservations WHERE section_id = $1 AND student_id = $2 RETURNING student_type`
	if err = tx.GetContext(ctx, &studentType, deleteQuery, sectionID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("delete reservation: %w", err)
	}

	next := models.Occupancy{Regular: section.RegularCount, Irregular: section.IrregularCount}.Add(studentType, -1)
	if next.Regular < 0 {
		next.Regular = 0
	}
	if next.Irregular < 0 {
		next.Irregular = 0
	}
	if err = r.writeCounts(ctx, tx, sectionID, next); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit release: %w", err)
	}
	return true, nil
}

// Capacity reports live counts against resolved quotas.
func (r *CapacityRepository) Capacity(ctx context.Context, sectionID string) (*models.SectionCapacity, error) {
	const query = `SELECT id, code, course, year_level, school_year, semester, max_regular, max_irregular, regular_count, irregular_count
FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, sectionID); err != nil {
		return nil, err
	}
	return models.NewSectionCapacity(section, section.Quota(r.defaults), models.Occupancy{Regular: section.RegularCount, Irregular: section.IrregularCount}), nil
}

func (r *CapacityRepository) writeCounts(ctx context.Context, tx *sqlx.Tx, sectionID string, occupancy models.Occupancy) error {
	const updateQuery = `UPDATE sections SET regular_count = $1, irregular_count = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, updateQuery, occupancy.Regular, occupancy.Irregular, sectionID); err != nil {
		return fmt.Errorf("update section counts: %w", err)
	}
	return nil
}
