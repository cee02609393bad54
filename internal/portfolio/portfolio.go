// Package portfolio aggregates exported rows per company and classifies each company's
// scope 1 emissions trend.
package portfolio

import (
	"sort"

	"github.com/jonathan/esg-extractor/internal/types"
)

// Risk thresholds on the first-to-last scope 1 change, in percent.
const (
	minYearsForRisk       = 3
	highRiskChangePercent = 10.0
)

// CalculateRisk compares the earliest and latest reported scope 1 values of one
// company's rows. Rows are ordered by reporting year; rows with no year sort first.
func CalculateRisk(rows []types.ExportRow) types.RiskLevel {
	if len(rows) < minYearsForRisk {
		return types.RiskInsufficient
	}

	sorted := append([]types.ExportRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return yearOrZero(sorted[i].ReportingYear) < yearOrZero(sorted[j].ReportingYear)
	})

	var values []float64
	for _, r := range sorted {
		if r.Scope1Value != nil {
			values = append(values, *r.Scope1Value)
		}
	}
	if len(values) < 2 {
		return types.RiskInsufficient
	}

	first, last := values[0], values[len(values)-1]
	if first == 0 {
		return types.RiskInsufficient
	}

	change := (last - first) / first * 100
	switch {
	case change > highRiskChangePercent:
		return types.RiskHigh
	case change > 0:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// Summarize groups rows by company and builds one summary per company, sorted by name.
// Rows without a company are dropped. decisions may be nil.
func Summarize(rows []types.ExportRow, decisions map[string]types.Decision) []types.CompanySummary {
	byCompany := make(map[string][]types.ExportRow)
	var names []string
	for _, r := range rows {
		if r.Company == "" {
			continue
		}
		if _, ok := byCompany[r.Company]; !ok {
			names = append(names, r.Company)
		}
		byCompany[r.Company] = append(byCompany[r.Company], r)
	}
	sort.Strings(names)

	out := make([]types.CompanySummary, 0, len(names))
	for _, name := range names {
		out = append(out, summarize(name, byCompany[name], decisions))
	}
	return out
}

// Company returns the rows of one company, or nil if it has none.
func Company(rows []types.ExportRow, name string) []types.ExportRow {
	var out []types.ExportRow
	for _, r := range rows {
		if r.Company == name {
			out = append(out, r)
		}
	}
	return out
}

func summarize(name string, rows []types.ExportRow, decisions map[string]types.Decision) types.CompanySummary {
	years := []int{}
	for _, r := range rows {
		if r.ReportingYear != nil {
			years = append(years, *r.ReportingYear)
		}
	}
	sort.Ints(years)

	latest := rows[0]
	for _, r := range rows[1:] {
		if yearOrZero(r.ReportingYear) > yearOrZero(latest.ReportingYear) {
			latest = r
		}
	}

	s := types.CompanySummary{
		Name:             name,
		YearsAvailable:   years,
		YearsCount:       len(years),
		RiskLevel:        CalculateRisk(rows),
		LatestScope1:     latest.Scope1Value,
		LatestScope1Unit: latest.Scope1Unit,
		LatestScope2:     latest.Scope2MarketValue,
		LatestScope2Unit: latest.Scope2MarketUnit,
		HasAssurance:     latest.AssurancePresent,
		Target2030:       latest.Target2030Pct,
		ActionPlan:       latest.ActionPlanSummary,
		Data:             rows,
	}
	if d, ok := decisions[name]; ok {
		s.Decision = &d
	}
	return s
}

func yearOrZero(y *int) int {
	if y == nil {
		return 0
	}
	return *y
}
