package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

// GradeRepository reads the grade ledger.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListByStudent returns every grade record of a student with the catalog subject name when known.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.GradeRecord, error) {
	const query = `SELECT g.id, g.student_id, g.enrollment_id, g.subject_code, COALESCE(cs.name, '') AS subject_name,
    g.school_year, g.semester, g.units, g.grade, g.remarks, g.created_at, g.updated_at
FROM grade_records g
LEFT JOIN (
    SELECT DISTINCT ON (UPPER(REPLACE(code, ' ', ''))) UPPER(REPLACE(code, ' ', '')) AS norm_code, name
    FROM curriculum_subjects
    ORDER BY UPPER(REPLACE(code, ' ', '')), year_level
) cs ON cs.norm_code = UPPER(REPLACE(g.subject_code, ' ', ''))
WHERE g.student_id = $1
ORDER BY g.school_year, g.semester, g.subject_code`
	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list grade records: %w", err)
	}
	return records, nil
}
