package models

import (
	"fmt"
	"strings"
	"time"
)

// StudentType determines which section quota a student's seat draws against.
type StudentType string

// Supported student types.
const (
	StudentTypeRegular   StudentType = "REGULAR"
	StudentTypeIrregular StudentType = "IRREGULAR"
)

// ParseStudentType normalises free text such as "regular" or "Irregular".
func ParseStudentType(raw string) (StudentType, bool) {
	switch StudentType(strings.ToUpper(strings.TrimSpace(raw))) {
	case StudentTypeRegular:
		return StudentTypeRegular, true
	case StudentTypeIrregular:
		return StudentTypeIrregular, true
	}
	return "", false
}

// Valid reports whether t is a known student type.
func (t StudentType) Valid() bool {
	_, ok := ParseStudentType(string(t))
	return ok
}

// Canonical returns the upper-case constant for a known type and t unchanged otherwise.
func (t StudentType) Canonical() StudentType {
	if canonical, ok := ParseStudentType(string(t)); ok {
		return canonical
	}
	return t
}

// Irregular reports whether t draws against the irregular quota.
func (t StudentType) Irregular() bool {
	return t.Canonical() == StudentTypeIrregular
}

// Scan implements sql.Scanner so rows read from storage always carry the canonical type.
func (t *StudentType) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = ""
	case string:
		*t = StudentType(strings.TrimSpace(v)).Canonical()
	case []byte:
		*t = StudentType(strings.TrimSpace(string(v))).Canonical()
	default:
		return fmt.Errorf("scan student type: unsupported type %T", src)
	}
	return nil
}

// Student is the advising view of a learner supplied by the student directory.
type Student struct {
	ID            string      `db:"id" json:"id"`
	StudentNumber string      `db:"student_number" json:"student_number"`
	FullName      string      `db:"full_name" json:"full_name"`
	Course        string      `db:"course" json:"course"`
	YearLevel     int         `db:"year_level" json:"year_level"`
	StudentType   StudentType `db:"student_type" json:"student_type"`
	Active        bool        `db:"active" json:"active"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}
