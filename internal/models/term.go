package models

import (
	"fmt"
	"strings"
)

// SemesterBucket is the normalised semester used to group terms.
type SemesterBucket string

// Known semester buckets.
const (
	SemesterFirst  SemesterBucket = "1st"
	SemesterSecond SemesterBucket = "2nd"
	SemesterSummer SemesterBucket = "summer"
	SemesterOther  SemesterBucket = "other"
)

var bucketOrder = map[SemesterBucket]int{SemesterFirst: 0, SemesterSecond: 1, SemesterSummer: 2, SemesterOther: 3}

// NormalizeSemester maps registrar text ("1st Semester", "Second Sem", "SUMMER") onto a bucket.
func NormalizeSemester(raw string) SemesterBucket {
	text := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case text == "":
		return SemesterOther
	case strings.Contains(text, "summer"):
		return SemesterSummer
	case strings.Contains(text, "1"), strings.Contains(text, "first"):
		return SemesterFirst
	case strings.Contains(text, "2"), strings.Contains(text, "second"):
		return SemesterSecond
	}
	return SemesterOther
}

// Rank orders buckets within a school year.
func (b SemesterBucket) Rank() int {
	if r, ok := bucketOrder[b]; ok {
		return r
	}
	return len(bucketOrder)
}

// Term scopes sections, schedules and grade records.
type Term struct {
	SchoolYear string `db:"school_year" json:"school_year"`
	Semester   string `db:"semester" json:"semester"`
}

// Bucket returns the normalised semester.
func (t Term) Bucket() SemesterBucket {
	return NormalizeSemester(t.Semester)
}

// Normalized returns the term with trimmed school year and bucketed semester.
func (t Term) Normalized() Term {
	return Term{SchoolYear: strings.TrimSpace(t.SchoolYear), Semester: string(t.Bucket())}
}

// Key is a stable identifier used for grouping and cache keys.
func (t Term) Key() string {
	n := t.Normalized()
	return n.SchoolYear + "|" + n.Semester
}

// Same compares terms after normalisation.
func (t Term) Same(other Term) bool {
	return t.Key() == other.Key()
}

// Before orders terms chronologically (school year text, then bucket).
func (t Term) Before(other Term) bool {
	a, b := t.Normalized(), other.Normalized()
	if a.SchoolYear != b.SchoolYear {
		return a.SchoolYear < b.SchoolYear
	}
	return t.Bucket().Rank() < other.Bucket().Rank()
}

// IsZero reports whether no school year was supplied.
func (t Term) IsZero() bool {
	return strings.TrimSpace(t.SchoolYear) == "" && strings.TrimSpace(t.Semester) == ""
}

func (t Term) String() string {
	n := t.Normalized()
	return fmt.Sprintf("%s %s", n.SchoolYear, n.Semester)
}
