// Package export turns extracted records into the aggregated tabular export (CSV and
// XLSX) and persists per-report JSON records.
package export

import (
	"sort"

	"github.com/jonathan/esg-extractor/internal/fields"
	"github.com/jonathan/esg-extractor/internal/normalize"
	"github.com/jonathan/esg-extractor/internal/types"
)

// TargetYear is the target year surfaced in the export columns.
const TargetYear = 2030

// Columns is the export header, in order.
var Columns = []string{
	"Company",
	"Reporting_Year",
	"Scope_1_Value",
	"Scope_1_Unit",
	"Scope_1_Calculated",
	"Scope_2_Market_Value",
	"Scope_2_Market_Unit",
	"Scope_2_Calculated",
	"Assurance_Present",
	"Target_2030_Pct",
	"Target_Base_Year",
	"Action_Plan_Summary",
	"Flags",
}

// BuildRows converts records to export rows sorted by company then year. Missing
// required fields (per registry) are flagged; a nil registry skips that flag.
func BuildRows(records []*types.ESGRecord, registry *fields.Registry) []types.ExportRow {
	rows := make([]types.ExportRow, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		rows = append(rows, BuildRow(rec, registry))
	}
	SortRows(rows)
	return rows
}

// BuildRow converts one record.
func BuildRow(rec *types.ESGRecord, registry *fields.Registry) types.ExportRow {
	var missing []string
	if registry != nil {
		missing = registry.Missing(rec)
	}

	row := types.ExportRow{
		Company:           companyOf(rec),
		ReportingYear:     yearOf(rec),
		Scope1Value:       rec.Scope1.Value,
		Scope1Unit:        rec.Scope1.Unit,
		Scope1Calculated:  normalize.Emission(rec.Scope1),
		Scope2MarketValue: rec.Scope2Market.Value,
		Scope2MarketUnit:  rec.Scope2Market.Unit,
		Scope2Calculated:  normalize.Emission(rec.Scope2Market),
		AssurancePresent:  rec.AssurancePresent != nil && *rec.AssurancePresent,
		ActionPlanSummary: rec.ActionPlanSummary,
		Flags:             normalize.JoinFlags(normalize.Flags(rec, missing)),
	}
	if t, ok := rec.TargetForYear(TargetYear); ok {
		row.Target2030Pct = t.TargetReductionPercentage
		row.TargetBaseYear = t.BaseYear
	}
	return row
}

// SortRows orders rows by company, then reporting year with unknown years last.
func SortRows(rows []types.ExportRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Company != rows[j].Company {
			return rows[i].Company < rows[j].Company
		}
		yi, yj := rows[i].ReportingYear, rows[j].ReportingYear
		switch {
		case yi == nil:
			return false
		case yj == nil:
			return true
		default:
			return *yi < *yj
		}
	})
}

func companyOf(rec *types.ESGRecord) string {
	if rec.Meta != nil && rec.Meta.CompanyName != "" {
		return rec.Meta.CompanyName
	}
	if rec.CompanyName != nil {
		return *rec.CompanyName
	}
	return ""
}

func yearOf(rec *types.ESGRecord) *int {
	if rec.ReportingYear != nil {
		return types.Ptr(*rec.ReportingYear)
	}
	if rec.Meta != nil && rec.Meta.ReportingYear != 0 {
		return types.Ptr(rec.Meta.ReportingYear)
	}
	return nil
}
