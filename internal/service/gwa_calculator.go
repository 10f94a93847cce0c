package service

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/advising-api/internal/models"
)

const gwaPlaces = 2

// ComputeGwa returns Σ(grade×units)/Σ(units) over records in scope that carry a numeric grade and
// positive units, rounded half-even to two places. Without such records the result is unavailable.
func ComputeGwa(records []models.GradeRecord, scope models.GwaScope) models.GwaResult {
	result := models.GwaResult{Scope: scope.Label()}
	weighted := decimal.Zero
	units := decimal.Zero
	for _, record := range records {
		if !scope.Cumulative && !record.Term().Same(scope.Term) {
			continue
		}
		grade, ok := parseGrade(record.Grade)
		recordUnits := decimal.NewFromFloat(record.Units)
		if !ok || !recordUnits.IsPositive() {
			result.PendingCount++
			continue
		}
		weighted = weighted.Add(grade.Mul(recordUnits))
		units = units.Add(recordUnits)
		result.GradedCount++
	}
	if !units.IsPositive() {
		return result
	}
	value := weighted.Div(units).RoundBank(gwaPlaces).InexactFloat64()
	result.Value = &value
	result.Available = true
	result.Units = units.InexactFloat64()
	return result
}

func parseGrade(text string) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil || value.LessThan(decimal.NewFromFloat(models.BestGrade)) || value.GreaterThan(decimal.NewFromFloat(models.WorstGrade)) {
		return decimal.Zero, false
	}
	return value, true
}

// BuildGradeReport groups records per term in chronological order with each term's GWA and the
// cumulative GWA. Ongoing and non-numeric records stay in the listing.
func BuildGradeReport(studentID string, records []models.GradeRecord) models.GradeReport {
	byTerm := make(map[string]*models.GwaTermRow)
	var order []string
	for _, record := range records {
		term := record.Term()
		key := term.Key()
		row, ok := byTerm[key]
		if !ok {
			row = &models.GwaTermRow{Term: term.Normalized(), Bucket: term.Bucket()}
			byTerm[key] = row
			order = append(order, key)
		}
		row.Records = append(row.Records, record)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return byTerm[order[i]].Term.Before(byTerm[order[j]].Term)
	})

	report := models.GradeReport{StudentID: studentID, Terms: make([]models.GwaTermRow, 0, len(order))}
	for _, key := range order {
		row := byTerm[key]
		row.Gwa = ComputeGwa(row.Records, models.TermScope(row.Term))
		report.Terms = append(report.Terms, *row)
	}
	report.Cumulative = ComputeGwa(records, models.CumulativeScope())
	return report
}
