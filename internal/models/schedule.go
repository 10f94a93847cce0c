package models

import (
	"fmt"

	"github.com/noah-isme/advising-api/pkg/timeslot"
)

// ScheduleSlot is one meeting pattern of a section. An empty SubjectCode marks a section-wide
// slot that applies to every subject taken in the section.
type ScheduleSlot struct {
	ID          string `db:"id" json:"id"`
	SectionID   string `db:"section_id" json:"section_id"`
	SubjectCode string `db:"subject_code" json:"subject_code,omitempty"`
	Days        string `db:"days" json:"days"`
	StartMinute int    `db:"start_minute" json:"start_minute"`
	EndMinute   int    `db:"end_minute" json:"end_minute"`
	Room        string `db:"room" json:"room"`
}

// Parse validates the slot and converts it into a comparable reference.
func (s ScheduleSlot) Parse(sectionCode string) (SlotRef, error) {
	days, err := timeslot.ParseDays(s.Days)
	if err != nil {
		return SlotRef{}, fmt.Errorf("slot %s: %w", s.ID, err)
	}
	window, err := timeslot.NewRange(s.StartMinute, s.EndMinute)
	if err != nil {
		return SlotRef{}, fmt.Errorf("slot %s: %w", s.ID, err)
	}
	return SlotRef{
		SlotID:      s.ID,
		SectionID:   s.SectionID,
		SectionCode: sectionCode,
		SubjectCode: NormalizeCode(s.SubjectCode),
		Room:        s.Room,
		Days:        days,
		Time:        window,
	}, nil
}

// SlotRef is a parsed slot attributed to the subject it serves.
type SlotRef struct {
	SlotID      string
	SectionID   string
	SectionCode string
	SubjectCode string
	Room        string
	Days        timeslot.DaySet
	Time        timeslot.Range
}

// ScheduleConflict describes one colliding pair of slots.
type ScheduleConflict struct {
	SubjectCode            string `json:"subject_code"`
	SectionCode            string `json:"section_code"`
	Day                    string `json:"day"`
	Time                   string `json:"time"`
	Room                   string `json:"room,omitempty"`
	ConflictingSubjectCode string `json:"conflicting_subject_code"`
	ConflictingSectionCode string `json:"conflicting_section_code"`
	ConflictingTime        string `json:"conflicting_time"`
}

// StudyLoadEntry is a committed subject with its section schedule.
type StudyLoadEntry struct {
	EnrollmentID string         `json:"enrollment_id"`
	SubjectCode  string         `json:"subject_code"`
	SubjectName  string         `json:"subject_name"`
	Units        float64        `json:"units"`
	SectionID    string         `json:"section_id"`
	SectionCode  string         `json:"section_code"`
	Slots        []ScheduleSlot `json:"slots"`
}

// StudyLoad lists a student's active subjects for a term.
type StudyLoad struct {
	Student    Student          `json:"student"`
	Term       Term             `json:"term"`
	Entries    []StudyLoadEntry `json:"entries"`
	TotalUnits float64          `json:"total_units"`
}

// SectionSlot is a slot joined with its section code. For committed slots SubjectCode carries the
// enrolled subject the slot was resolved for.
type SectionSlot struct {
	ScheduleSlot
	SectionCode string `db:"section_code" json:"section_code"`
	SchoolYear  string `db:"school_year" json:"-"`
	Semester    string `db:"semester" json:"-"`
}

// Term returns the term the slot belongs to.
func (s SectionSlot) Term() Term {
	return Term{SchoolYear: s.SchoolYear, Semester: s.Semester}
}
