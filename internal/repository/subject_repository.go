package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/advising-api/internal/models"
)

const subjectColumns = `id, code, name, course, year_level, semester, units, lec_hours, lab_hours, prerequisites, allowed_status`

// SubjectRepository reads the curriculum catalog.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListByScope returns catalog rows for any of the given course aliases and year level.
// Semester text is free-form so rows are filtered by bucket after loading.
func (r *SubjectRepository) ListByScope(ctx context.Context, courses []string, yearLevel int, semester string) ([]models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM curriculum_subjects WHERE UPPER(TRIM(course)) = ANY($1) AND year_level = $2 ORDER BY code`, subjectColumns)
	var rows []models.Subject
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(upperAll(courses)), yearLevel); err != nil {
		return nil, fmt.Errorf("list curriculum subjects: %w", err)
	}
	if semester == "" {
		return rows, nil
	}
	bucket := models.NormalizeSemester(semester)
	filtered := rows[:0]
	for _, row := range rows {
		if models.NormalizeSemester(row.Semester) == bucket {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// FindByCodes returns every catalog row whose normalised code is in codes.
func (r *SubjectRepository) FindByCodes(ctx context.Context, codes []string) ([]models.Subject, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		normalized = append(normalized, models.NormalizeCode(code))
	}
	query := fmt.Sprintf(`SELECT %s FROM curriculum_subjects WHERE UPPER(REPLACE(code, ' ', '')) = ANY($1) ORDER BY code, year_level`, subjectColumns)
	var rows []models.Subject
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(normalized)); err != nil {
		return nil, fmt.Errorf("find curriculum subjects: %w", err)
	}
	return rows, nil
}

func upperAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, models.NormalizeCourse(v))
	}
	return out
}
