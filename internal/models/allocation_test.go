package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideReservation(t *testing.T) {
	quota := Quota{MaxRegular: 35, MaxIrregular: 5}

	tests := []struct {
		name     string
		current  Occupancy
		kind     StudentType
		reserved bool
		full     CapacityKind
	}{
		{"regular seat free", Occupancy{Regular: 34, Irregular: 5}, StudentTypeRegular, true, ""},
		{"regular quota exhausted", Occupancy{Regular: 35, Irregular: 2}, StudentTypeRegular, false, CapacityKindRegular},
		{"irregular quota exhausted", Occupancy{Regular: 35, Irregular: 5}, StudentTypeIrregular, false, CapacityKindIrregular},
		{"irregular seat free", Occupancy{Regular: 35, Irregular: 4}, StudentTypeIrregular, true, ""},
		{"combined guard after quota shrink", Occupancy{Regular: 30, Irregular: 10}, StudentTypeRegular, false, CapacityKindCombined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := DecideReservation(quota, tt.current, tt.kind)
			assert.Equal(t, tt.reserved, outcome.Reserved)
			assert.Equal(t, tt.full, outcome.Full)
			if tt.reserved {
				assert.Equal(t, tt.current.Of(tt.kind)+1, outcome.Occupancy.Of(tt.kind))
			} else {
				assert.Equal(t, tt.current, outcome.Occupancy)
			}
		})
	}
}

func TestSectionQuotaFallsBackToDefaults(t *testing.T) {
	defaults := Quota{MaxRegular: 35, MaxIrregular: 5}
	ten := 10
	assert.Equal(t, defaults, Section{}.Quota(defaults))
	assert.Equal(t, Quota{MaxRegular: 10, MaxIrregular: 5}, Section{MaxRegular: &ten}.Quota(defaults))
}

func TestNormalizeSemester(t *testing.T) {
	cases := map[string]SemesterBucket{
		"1st Semester": SemesterFirst,
		"First Sem":    SemesterFirst,
		"2nd":          SemesterSecond,
		"second":       SemesterSecond,
		"SUMMER 2024":  SemesterSummer,
		"Midyear":      SemesterOther,
		"":             SemesterOther,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeSemester(raw), raw)
	}
}

func TestTermOrdering(t *testing.T) {
	first := Term{SchoolYear: "2023-2024", Semester: "1st Semester"}
	second := Term{SchoolYear: "2023-2024", Semester: "2nd Semester"}
	next := Term{SchoolYear: "2024-2025", Semester: "1st"}
	assert.True(t, first.Before(second))
	assert.True(t, second.Before(next))
	assert.True(t, first.Same(Term{SchoolYear: " 2023-2024 ", Semester: "first"}))
}

func TestSubjectAllowsType(t *testing.T) {
	assert.True(t, Subject{}.AllowsType(StudentTypeIrregular))
	assert.True(t, Subject{AllowedStatus: "both"}.AllowsType(StudentTypeRegular))
	assert.False(t, Subject{AllowedStatus: "REGULAR"}.AllowsType(StudentTypeIrregular))
	assert.True(t, Subject{AllowedStatus: "regular, irregular"}.AllowsType(StudentTypeIrregular))
	assert.True(t, Subject{AllowedStatus: "IRREGULAR"}.AllowsType(StudentType("irregular")))
	assert.False(t, Subject{AllowedStatus: "IRREGULAR"}.AllowsType(StudentType(" regular ")))
}

func TestStudentTypeCanonical(t *testing.T) {
	assert.Equal(t, StudentTypeIrregular, StudentType(" irregular").Canonical())
	assert.True(t, StudentType("Irregular").Irregular())
	assert.False(t, StudentType("regular").Irregular())
	assert.Equal(t, StudentType("transferee"), StudentType("transferee").Canonical())

	occ := Occupancy{}.Add(StudentType("irregular"), 1)
	assert.Equal(t, Occupancy{Irregular: 1}, occ)
	assert.Equal(t, 1, occ.Of(StudentType("irregular")))

	outcome := DecideReservation(Quota{MaxRegular: 0, MaxIrregular: 1}, Occupancy{}, StudentType("irregular"))
	assert.True(t, outcome.Reserved)
	assert.Equal(t, Occupancy{Irregular: 1}, outcome.Occupancy)
}

func TestStudentTypeScan(t *testing.T) {
	var st StudentType
	require.NoError(t, st.Scan([]byte(" irregular ")))
	assert.Equal(t, StudentTypeIrregular, st)
	require.NoError(t, st.Scan("Regular"))
	assert.Equal(t, StudentTypeRegular, st)
	require.NoError(t, st.Scan(nil))
	assert.Equal(t, StudentType(""), st)
	assert.Error(t, st.Scan(42))
}

func TestGradeNumeric(t *testing.T) {
	v, ok := GradeRecord{Grade: " 1.75 "}.NumericGrade()
	assert.True(t, ok)
	assert.Equal(t, 1.75, v)
	_, ok = GradeRecord{Grade: "INC"}.NumericGrade()
	assert.False(t, ok)
	_, ok = GradeRecord{}.NumericGrade()
	assert.False(t, ok)
}

func TestGradeNumericRejectsOffScaleValues(t *testing.T) {
	for _, grade := range []string{"-Inf", "+Inf", "Inf", "NaN", "-2.0", "0", "0.99", "5.01", "75"} {
		_, ok := GradeRecord{Grade: grade}.NumericGrade()
		assert.False(t, ok, grade)
	}
	for _, grade := range []string{"1", "1.0", "3.0", "5.0"} {
		_, ok := GradeRecord{Grade: grade}.NumericGrade()
		assert.True(t, ok, grade)
	}
}
