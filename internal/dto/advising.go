package dto

import "strings"

// AllocateRequest asks the engine to place a student in a section for a batch of subjects.
type AllocateRequest struct {
	StudentID    string   `json:"student_id" validate:"required"`
	SectionID    string   `json:"section_id" validate:"required"`
	SubjectCodes []string `json:"subject_codes" validate:"required,min=1,dive,required"`
}

// CheckEligibilityRequest evaluates specific subjects for a student.
type CheckEligibilityRequest struct {
	SubjectCodes []string `json:"subject_codes" validate:"required,min=1,dive,required"`
}

// TermQuery carries the optional term filter of advising endpoints.
type TermQuery struct {
	SchoolYear string `form:"schoolYear"`
	Semester   string `form:"semester"`
}

// GwaQuery selects the GWA scope. A term scope needs both term fields.
type GwaQuery struct {
	Scope      string `form:"scope" validate:"omitempty,oneof=cumulative term"`
	SchoolYear string `form:"schoolYear" validate:"required_if=Scope term"`
	Semester   string `form:"semester" validate:"required_if=Scope term"`
}

// Normalize lowercases the scope and trims the term fields.
func (q *GwaQuery) Normalize() {
	q.Scope = strings.ToLower(strings.TrimSpace(q.Scope))
	q.SchoolYear = strings.TrimSpace(q.SchoolYear)
	q.Semester = strings.TrimSpace(q.Semester)
}

// StudyLoadQuery selects the term and rendering format of a study load.
type StudyLoadQuery struct {
	SchoolYear string `form:"schoolYear" validate:"required"`
	Semester   string `form:"semester" validate:"required"`
	Format     string `form:"format" validate:"omitempty,oneof=json csv pdf"`
}

// Normalize lowercases the format and trims the term fields.
func (q *StudyLoadQuery) Normalize() {
	q.SchoolYear = strings.TrimSpace(q.SchoolYear)
	q.Semester = strings.TrimSpace(q.Semester)
	q.Format = strings.ToLower(strings.TrimSpace(q.Format))
}

// CancelEnrollmentResponse reports a cancelled record and whether its seat was returned.
type CancelEnrollmentResponse struct {
	EnrollmentID string `json:"enrollment_id"`
	Status       string `json:"status"`
	SeatReleased bool   `json:"seat_released"`
}
