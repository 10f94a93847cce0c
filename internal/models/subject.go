package models

import (
	"strings"
	"unicode"
)

// Subject is a curriculum row read from the catalog.
type Subject struct {
	ID            string  `db:"id" json:"id"`
	Code          string  `db:"code" json:"code"`
	Name          string  `db:"name" json:"name"`
	Course        string  `db:"course" json:"course"`
	YearLevel     int     `db:"year_level" json:"year_level"`
	Semester      string  `db:"semester" json:"semester"`
	Units         float64 `db:"units" json:"units"`
	LecHours      float64 `db:"lec_hours" json:"lec_hours"`
	LabHours      float64 `db:"lab_hours" json:"lab_hours"`
	Prerequisites string  `db:"prerequisites" json:"prerequisites"`
	AllowedStatus string  `db:"allowed_status" json:"allowed_status"`
}

// AllowsType reports whether students of type t may take the subject.
// Blank, ALL and BOTH admit everyone; otherwise a comma separated list of types is expected.
func (s Subject) AllowsType(t StudentType) bool {
	raw := strings.ToUpper(strings.TrimSpace(s.AllowedStatus))
	if raw == "" || raw == "ALL" || raw == "BOTH" || raw == "ANY" {
		return true
	}
	for _, part := range strings.Split(raw, ",") {
		if allowed, ok := ParseStudentType(part); ok && allowed == t.Canonical() {
			return true
		}
	}
	return false
}

// CatalogScope keys curriculum rows.
type CatalogScope struct {
	Course    string
	YearLevel int
	Semester  string
}

// NormalizeCode uppercases a subject code and strips whitespace so "cc 101" equals "CC101".
func NormalizeCode(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, code)
}

// NormalizeCourse uppercases a program code and collapses inner whitespace.
func NormalizeCourse(course string) string {
	return strings.Join(strings.Fields(strings.ToUpper(course)), " ")
}
