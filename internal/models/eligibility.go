package models

// BlockReason explains why a subject is not available to a student.
type BlockReason string

// Block reasons.
const (
	BlockReasonPrerequisite     BlockReason = "PREREQUISITE"
	BlockReasonStatusNotAllowed BlockReason = "STATUS_NOT_ALLOWED"
	BlockReasonProgramMismatch  BlockReason = "PROGRAM_MISMATCH"
)

// Eligibility is the outcome of evaluating one subject for one student.
type Eligibility struct {
	SubjectCode string        `json:"subject_code"`
	Eligible    bool          `json:"eligible"`
	Missing     []string      `json:"missing,omitempty"`
	Reasons     []BlockReason `json:"reasons,omitempty"`
}

// SubjectEligibility pairs a catalog row with its evaluation.
type SubjectEligibility struct {
	Subject     Subject     `json:"subject"`
	Eligibility Eligibility `json:"eligibility"`
}
