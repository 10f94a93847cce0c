package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment record.
type EnrollmentStatus string

// Possible enrollment statuses. CANCELLED is terminal; records are never deleted.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// EnrollmentRecord captures a student's registration to one subject in a section for a term.
type EnrollmentRecord struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	SectionID   string           `db:"section_id" json:"section_id"`
	SubjectCode string           `db:"subject_code" json:"subject_code"`
	SchoolYear  string           `db:"school_year" json:"school_year"`
	Semester    string           `db:"semester" json:"semester"`
	StudentType StudentType      `db:"student_type" json:"student_type"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	CancelledAt *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// Term returns the record's term.
func (e EnrollmentRecord) Term() Term {
	return Term{SchoolYear: e.SchoolYear, Semester: e.Semester}
}

// Active reports whether the record still holds the subject.
func (e EnrollmentRecord) Active() bool {
	return e.Status == EnrollmentStatusActive
}
