package models

// Section is a scheduled offering with per-type capacity.
type Section struct {
	ID             string `db:"id" json:"id"`
	Code           string `db:"code" json:"code"`
	Course         string `db:"course" json:"course"`
	YearLevel      int    `db:"year_level" json:"year_level"`
	SchoolYear     string `db:"school_year" json:"school_year"`
	Semester       string `db:"semester" json:"semester"`
	MaxRegular     *int   `db:"max_regular" json:"max_regular,omitempty"`
	MaxIrregular   *int   `db:"max_irregular" json:"max_irregular,omitempty"`
	RegularCount   int    `db:"regular_count" json:"regular_count"`
	IrregularCount int    `db:"irregular_count" json:"irregular_count"`
}

// Term returns the section's term.
func (s Section) Term() Term {
	return Term{SchoolYear: s.SchoolYear, Semester: s.Semester}
}

// Quota is a resolved pair of per-type limits.
type Quota struct {
	MaxRegular   int `json:"max_regular"`
	MaxIrregular int `json:"max_irregular"`
}

// Combined is the total seats across both types.
func (q Quota) Combined() int {
	return q.MaxRegular + q.MaxIrregular
}

// Quota resolves unset limits against defaults.
func (s Section) Quota(defaults Quota) Quota {
	q := defaults
	if s.MaxRegular != nil && *s.MaxRegular >= 0 {
		q.MaxRegular = *s.MaxRegular
	}
	if s.MaxIrregular != nil && *s.MaxIrregular >= 0 {
		q.MaxIrregular = *s.MaxIrregular
	}
	return q
}

// Occupancy is the live seat count of a section split by student type.
type Occupancy struct {
	Regular   int `json:"regular"`
	Irregular int `json:"irregular"`
}

// Total returns the combined occupancy.
func (o Occupancy) Total() int {
	return o.Regular + o.Irregular
}

// Of returns the count for a student type.
func (o Occupancy) Of(t StudentType) int {
	if t.Irregular() {
		return o.Irregular
	}
	return o.Regular
}

// Add returns the occupancy adjusted by delta seats of type t.
func (o Occupancy) Add(t StudentType, delta int) Occupancy {
	if t.Irregular() {
		o.Irregular += delta
	} else {
		o.Regular += delta
	}
	return o
}

// SectionCapacity reports live counts against quotas.
type SectionCapacity struct {
	SectionID   string    `json:"section_id"`
	SectionCode string    `json:"section_code"`
	Quota       Quota     `json:"quota"`
	Occupancy   Occupancy `json:"occupancy"`
	Available   Occupancy `json:"available"`
}

// SectionHolder is a student occupying a seat in a section.
type SectionHolder struct {
	SectionID   string      `db:"section_id" json:"section_id"`
	StudentID   string      `db:"student_id" json:"student_id"`
	StudentType StudentType `db:"student_type" json:"student_type"`
}

// NewSectionCapacity derives the remaining seats per type; the combined guard caps both.
func NewSectionCapacity(section Section, quota Quota, occupancy Occupancy) *SectionCapacity {
	combinedLeft := quota.Combined() - occupancy.Total()
	if combinedLeft < 0 {
		combinedLeft = 0
	}
	available := Occupancy{
		Regular:   clamp(quota.MaxRegular-occupancy.Regular, 0, combinedLeft),
		Irregular: clamp(quota.MaxIrregular-occupancy.Irregular, 0, combinedLeft),
	}
	return &SectionCapacity{
		SectionID:   section.ID,
		SectionCode: section.Code,
		Quota:       quota,
		Occupancy:   occupancy,
		Available:   available,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
