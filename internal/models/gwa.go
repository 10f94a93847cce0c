package models

// GwaScope selects the records averaged by the GWA calculator.
type GwaScope struct {
	Cumulative bool
	Term       Term
}

// CumulativeScope averages every term.
func CumulativeScope() GwaScope {
	return GwaScope{Cumulative: true}
}

// TermScope averages one term.
func TermScope(term Term) GwaScope {
	return GwaScope{Term: term}
}

// Label renders the scope for responses.
func (s GwaScope) Label() string {
	if s.Cumulative {
		return "cumulative"
	}
	return s.Term.String()
}

// GwaResult is a units-weighted average. Value is nil when no numeric grade is in scope.
type GwaResult struct {
	Scope        string   `json:"scope"`
	Value        *float64 `json:"value"`
	Available    bool     `json:"available"`
	Units        float64  `json:"units"`
	GradedCount  int      `json:"graded_count"`
	PendingCount int      `json:"pending_count"`
}

// GwaTermRow lists a term's records with its average.
type GwaTermRow struct {
	Term    Term           `json:"term"`
	Bucket  SemesterBucket `json:"bucket"`
	Gwa     GwaResult      `json:"gwa"`
	Records []GradeRecord  `json:"records"`
}

// GradeReport is the grade view of a student across terms.
type GradeReport struct {
	StudentID  string       `json:"student_id"`
	Terms      []GwaTermRow `json:"terms"`
	Cumulative GwaResult    `json:"cumulative"`
}
