package service

import (
	"fmt"

	"github.com/noah-isme/advising-api/internal/models"
)

// Overlaps reports whether two slots meet on a common day with intersecting half-open times.
// A class ending at 10:00 does not collide with one starting at 10:00.
func Overlaps(a, b models.SlotRef) bool {
	if a.Days.Intersect(b.Days).Empty() {
		return false
	}
	return a.Time.Overlaps(b.Time)
}

// DetectConflicts compares every candidate slot with every committed slot, and candidate slots of
// different subjects with each other. A slot shared by several subjects of the same section is one
// meeting and never conflicts with itself.
func DetectConflicts(candidates, committed []models.SlotRef) []models.ScheduleConflict {
	var conflicts []models.ScheduleConflict
	for _, c := range candidates {
		for _, existing := range committed {
			if c.SlotID != "" && c.SlotID == existing.SlotID {
				continue
			}
			if Overlaps(c, existing) {
				conflicts = append(conflicts, describeConflict(c, existing))
			}
		}
	}
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			if a.SubjectCode == b.SubjectCode || (a.SlotID != "" && a.SlotID == b.SlotID) {
				continue
			}
			if Overlaps(a, b) {
				conflicts = append(conflicts, describeConflict(a, b))
			}
		}
	}
	return conflicts
}

func describeConflict(a, b models.SlotRef) models.ScheduleConflict {
	day := ""
	if shared := a.Days.Intersect(b.Days).Days(); len(shared) > 0 {
		day = shared[0].String()
	}
	return models.ScheduleConflict{
		SubjectCode:            a.SubjectCode,
		SectionCode:            a.SectionCode,
		Day:                    day,
		Time:                   a.Time.String(),
		Room:                   a.Room,
		ConflictingSubjectCode: b.SubjectCode,
		ConflictingSectionCode: b.SectionCode,
		ConflictingTime:        b.Time.String(),
	}
}

// ResolveSlots parses stored slots into comparable references, rejecting malformed rows.
func ResolveSlots(slots []models.SectionSlot) ([]models.SlotRef, error) {
	refs := make([]models.SlotRef, 0, len(slots))
	for _, slot := range slots {
		ref, err := slot.Parse(slot.SectionCode)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// CandidateSlots attributes a section's slots to the requested subjects. Subject-specific slots
// go to their subject; section-wide slots are attributed to every requested subject.
func CandidateSlots(slots []models.SlotRef, subjectCodes []string) []models.SlotRef {
	var out []models.SlotRef
	for _, code := range subjectCodes {
		for _, slot := range slots {
			switch slot.SubjectCode {
			case code:
				out = append(out, slot)
			case "":
				attributed := slot
				attributed.SubjectCode = code
				out = append(out, attributed)
			}
		}
	}
	return out
}

// OfferedCodes lists the subject codes a section has dedicated slots for.
func OfferedCodes(slots []models.SlotRef) map[string]struct{} {
	offered := make(map[string]struct{})
	for _, slot := range slots {
		if slot.SubjectCode != "" {
			offered[slot.SubjectCode] = struct{}{}
		}
	}
	return offered
}

func conflictMessage(conflicts []models.ScheduleConflict) string {
	if len(conflicts) == 0 {
		return ""
	}
	first := conflicts[0]
	return fmt.Sprintf("%s (%s %s) conflicts with %s in %s (%s)", first.SubjectCode, first.Day, first.Time, first.ConflictingSubjectCode, first.ConflictingSectionCode, first.ConflictingTime)
}
