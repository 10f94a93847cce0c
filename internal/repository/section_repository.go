package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

// SectionRepository reads sections and the schedule index.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs a SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindByID fetches a section with its live counters.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, code, course, year_level, school_year, semester, max_regular, max_irregular, regular_count, irregular_count
FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ListSlots returns the schedule slots of a section.
func (r *SectionRepository) ListSlots(ctx context.Context, sectionID string) ([]models.SectionSlot, error) {
	const query = `SELECT sl.id, sl.section_id, sl.subject_code, sl.days, sl.start_minute, sl.end_minute, sl.room,
    s.code AS section_code, s.school_year, s.semester
FROM section_schedule_slots sl
JOIN sections s ON s.id = sl.section_id
WHERE sl.section_id = $1
ORDER BY sl.start_minute, sl.id`
	var slots []models.SectionSlot
	if err := r.db.SelectContext(ctx, &slots, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section slots: %w", err)
	}
	return slots, nil
}

// ListCommittedSlots resolves the slots a student occupies through ACTIVE enrollment records,
// across terms. Section-wide slots are attributed to each enrolled subject.
func (r *SectionRepository) ListCommittedSlots(ctx context.Context, studentID string) ([]models.SectionSlot, error) {
	const query = `SELECT sl.id, sl.section_id, e.subject_code AS subject_code, sl.days, sl.start_minute, sl.end_minute, sl.room,
    s.code AS section_code, e.school_year, e.semester
FROM enrollment_records e
JOIN sections s ON s.id = e.section_id
JOIN section_schedule_slots sl ON sl.section_id = e.section_id
    AND (sl.subject_code = '' OR UPPER(REPLACE(sl.subject_code, ' ', '')) = e.subject_code)
WHERE e.student_id = $1 AND e.status = $2
ORDER BY e.subject_code, sl.start_minute`
	var slots []models.SectionSlot
	if err := r.db.SelectContext(ctx, &slots, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list committed slots: %w", err)
	}
	return slots, nil
}
