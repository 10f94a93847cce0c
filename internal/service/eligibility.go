package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/advising-api/internal/models"
)

// CourseMatcher resolves program codes through a configured equivalence table. Codes that are not
// listed only match themselves after normalisation.
type CourseMatcher struct {
	canonical map[string]string
	groups    map[string][]string
}

// NewCourseMatcher builds a matcher from canonical code -> aliases.
func NewCourseMatcher(equivalences map[string][]string) *CourseMatcher {
	m := &CourseMatcher{canonical: make(map[string]string), groups: make(map[string][]string)}
	keys := make([]string, 0, len(equivalences))
	for k := range equivalences {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		canonical := models.NormalizeCourse(key)
		if canonical == "" {
			continue
		}
		m.add(canonical, canonical)
		for _, alias := range equivalences[key] {
			if normalized := models.NormalizeCourse(alias); normalized != "" {
				m.add(canonical, normalized)
			}
		}
	}
	return m
}

func (m *CourseMatcher) add(canonical, name string) {
	if _, exists := m.canonical[name]; exists {
		return
	}
	m.canonical[name] = canonical
	m.groups[canonical] = append(m.groups[canonical], name)
}

// Canonical returns the canonical code for a course.
func (m *CourseMatcher) Canonical(course string) string {
	normalized := models.NormalizeCourse(course)
	if m != nil {
		if canonical, ok := m.canonical[normalized]; ok {
			return canonical
		}
	}
	return normalized
}

// Equivalent reports whether two program codes name the same program.
func (m *CourseMatcher) Equivalent(a, b string) bool {
	return m.Canonical(a) == m.Canonical(b)
}

// Aliases lists every accepted spelling of the course's program.
func (m *CourseMatcher) Aliases(course string) []string {
	canonical := m.Canonical(course)
	if m != nil {
		if group, ok := m.groups[canonical]; ok {
			return append([]string(nil), group...)
		}
	}
	return []string{canonical}
}

var noPrerequisite = map[string]struct{}{"": {}, "NONE": {}, "N/A": {}, "NA": {}, "-": {}}

// ParsePrerequisites turns free prerequisite text into distinct normalised subject codes.
func ParsePrerequisites(text string) []string {
	if _, none := noPrerequisite[strings.ToUpper(strings.TrimSpace(text))]; none {
		return nil
	}
	tokens := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '/' })
	seen := make(map[string]struct{}, len(tokens))
	codes := make([]string, 0, len(tokens))
	for _, token := range tokens {
		code := models.NormalizeCode(token)
		if code == "" || code == "NONE" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// EligibilityEvaluator decides whether a student may take a subject. It holds no mutable state,
// so the same inputs always produce the same answer.
type EligibilityEvaluator struct {
	passingGrade float64
	courses      *CourseMatcher
}

// NewEligibilityEvaluator constructs an evaluator. A non-positive passing grade falls back to 3.0.
func NewEligibilityEvaluator(passingGrade float64, courses *CourseMatcher) *EligibilityEvaluator {
	if passingGrade <= 0 {
		passingGrade = 3.0
	}
	if courses == nil {
		courses = NewCourseMatcher(nil)
	}
	return &EligibilityEvaluator{passingGrade: passingGrade, courses: courses}
}

// Courses exposes the program matcher used by the evaluator.
func (e *EligibilityEvaluator) Courses() *CourseMatcher {
	return e.courses
}

// IsPassing reports whether a grade record satisfies a prerequisite. A numeric grade at or below
// the passing grade passes, as does a remark containing "pass". Blank or non-numeric grades
// without such a remark are ongoing or incomplete.
func (e *EligibilityEvaluator) IsPassing(record models.GradeRecord) bool {
	if value, ok := record.NumericGrade(); ok && value <= e.passingGrade {
		return true
	}
	return strings.Contains(strings.ToLower(record.Remarks), "pass")
}

// PassedCodes indexes the normalised codes of every passing record.
func (e *EligibilityEvaluator) PassedCodes(grades []models.GradeRecord) map[string]struct{} {
	passed := make(map[string]struct{}, len(grades))
	for _, g := range grades {
		if e.IsPassing(g) {
			passed[models.NormalizeCode(g.SubjectCode)] = struct{}{}
		}
	}
	return passed
}

// Evaluate checks program, student type and prerequisites. Every missing prerequisite is listed.
func (e *EligibilityEvaluator) Evaluate(student models.Student, subject models.Subject, grades []models.GradeRecord) models.Eligibility {
	return e.evaluate(student, subject, e.PassedCodes(grades))
}

// EvaluateAll evaluates several subjects against one grade snapshot.
func (e *EligibilityEvaluator) EvaluateAll(student models.Student, subjects []models.Subject, grades []models.GradeRecord) []models.Eligibility {
	passed := e.PassedCodes(grades)
	results := make([]models.Eligibility, 0, len(subjects))
	for _, subject := range subjects {
		results = append(results, e.evaluate(student, subject, passed))
	}
	return results
}

func (e *EligibilityEvaluator) evaluate(student models.Student, subject models.Subject, passed map[string]struct{}) models.Eligibility {
	result := models.Eligibility{SubjectCode: models.NormalizeCode(subject.Code)}

	if strings.TrimSpace(subject.Course) != "" && !e.courses.Equivalent(student.Course, subject.Course) {
		result.Reasons = append(result.Reasons, models.BlockReasonProgramMismatch)
	}
	if !subject.AllowsType(student.StudentType) {
		result.Reasons = append(result.Reasons, models.BlockReasonStatusNotAllowed)
	}
	for _, code := range ParsePrerequisites(subject.Prerequisites) {
		if _, ok := passed[code]; !ok {
			result.Missing = append(result.Missing, code)
		}
	}
	if len(result.Missing) > 0 {
		result.Reasons = append(result.Reasons, models.BlockReasonPrerequisite)
	}
	result.Eligible = len(result.Reasons) == 0
	return result
}
