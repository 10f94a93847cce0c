package models

// AllocationStatus is the final outcome of an allocation request.
type AllocationStatus string

// Allocation outcomes.
const (
	AllocationStatusAllocated AllocationStatus = "ALLOCATED"
	AllocationStatusRejected  AllocationStatus = "REJECTED"
)

// RejectionReason classifies expected business rejections.
type RejectionReason string

// Rejection reasons.
const (
	RejectionEligibilityBlocked RejectionReason = "ELIGIBILITY_BLOCKED"
	RejectionScheduleConflict   RejectionReason = "SCHEDULE_CONFLICT"
	RejectionCapacityExceeded   RejectionReason = "CAPACITY_EXCEEDED"
)

// CapacityKind names the quota that refused a reservation.
type CapacityKind string

// Quota kinds.
const (
	CapacityKindRegular   CapacityKind = "REGULAR"
	CapacityKindIrregular CapacityKind = "IRREGULAR"
	CapacityKindCombined  CapacityKind = "COMBINED"
)

// ReserveOutcome is the result of a capacity reservation attempt.
type ReserveOutcome struct {
	Reserved    bool         `json:"reserved"`
	AlreadyHeld bool         `json:"already_held,omitempty"`
	Full        CapacityKind `json:"full,omitempty"`
	Occupancy   Occupancy    `json:"occupancy"`
}

// Rejection carries the actionable detail of a refused allocation.
type Rejection struct {
	Reason       RejectionReason    `json:"reason"`
	Message      string             `json:"message"`
	Blocked      []Eligibility      `json:"blocked,omitempty"`
	Conflicts    []ScheduleConflict `json:"conflicts,omitempty"`
	CapacityKind CapacityKind       `json:"capacity_kind,omitempty"`
}

// AllocationResult is returned by the allocation coordinator.
type AllocationResult struct {
	Status       AllocationStatus   `json:"status"`
	StudentID    string             `json:"student_id"`
	SectionID    string             `json:"section_id"`
	SectionCode  string             `json:"section_code"`
	Term         Term               `json:"term"`
	SeatReserved bool               `json:"seat_reserved"`
	Enrollments  []EnrollmentRecord `json:"enrollments,omitempty"`
	Grades       []GradeRecord      `json:"grades,omitempty"`
	Rejection    *Rejection         `json:"rejection,omitempty"`
}

// Allocated reports whether records were committed.
func (r *AllocationResult) Allocated() bool {
	return r != nil && r.Status == AllocationStatusAllocated
}

// DecideReservation applies the per-type quota and then the combined guard to the current
// occupancy. It never mutates state; callers persist the returned occupancy when Reserved.
func DecideReservation(quota Quota, current Occupancy, studentType StudentType) ReserveOutcome {
	if studentType.Irregular() {
		if current.Irregular >= quota.MaxIrregular {
			return ReserveOutcome{Full: CapacityKindIrregular, Occupancy: current}
		}
	} else if current.Regular >= quota.MaxRegular {
		return ReserveOutcome{Full: CapacityKindRegular, Occupancy: current}
	}
	if current.Total() >= quota.Combined() {
		return ReserveOutcome{Full: CapacityKindCombined, Occupancy: current}
	}
	return ReserveOutcome{Reserved: true, Occupancy: current.Add(studentType, 1)}
}
