package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Bounds of the grading scale; 1.0 is the best grade.
const (
	BestGrade  = 1.0
	WorstGrade = 5.0
)

// OnScale reports whether v is a finite grade within the grading scale.
func OnScale(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= BestGrade && v <= WorstGrade
}

// GradeRecord is a per-student, per-subject, per-term ledger entry. Grade stays blank until the
// grading workflow fills it in.
type GradeRecord struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	EnrollmentID *string   `db:"enrollment_id" json:"enrollment_id,omitempty"`
	SubjectCode  string    `db:"subject_code" json:"subject_code"`
	SubjectName  string    `db:"subject_name" json:"subject_name,omitempty"`
	SchoolYear   string    `db:"school_year" json:"school_year"`
	Semester     string    `db:"semester" json:"semester"`
	Units        float64   `db:"units" json:"units"`
	Grade        string    `db:"grade" json:"grade"`
	Remarks      string    `db:"remarks" json:"remarks"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Term returns the record's term.
func (g GradeRecord) Term() Term {
	return Term{SchoolYear: g.SchoolYear, Semester: g.Semester}
}

// NumericGrade parses the grade text. Ongoing, incomplete and off-scale entries report false.
func (g GradeRecord) NumericGrade() (float64, bool) {
	text := strings.TrimSpace(g.Grade)
	if text == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || !OnScale(value) {
		return 0, false
	}
	return value, true
}
