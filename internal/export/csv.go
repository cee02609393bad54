package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jonathan/esg-extractor/internal/types"
)

// WriteCSV writes the header and rows.
func WriteCSV(w io.Writer, rows []types.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(rowValues(r)); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", r.Company, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile replaces path with the rows, creating parent directories. Concurrent
// readers never see a partially written file.
func WriteCSVFile(path string, rows []types.ExportRow) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, rows)
	})
}

// ReadCSV parses an export back into typed rows. Columns are matched by header name;
// unknown columns are ignored and empty cells read as null.
func ReadCSV(r io.Reader) ([]types.ExportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []types.ExportRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	if _, ok := col["Company"]; !ok {
		return nil, fmt.Errorf("CSV has no Company column")
	}

	rows := []types.ExportRow{}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		row := types.ExportRow{
			Company:           get("Company"),
			Scope1Unit:        optString(get("Scope_1_Unit")),
			Scope2MarketUnit:  optString(get("Scope_2_Market_Unit")),
			Target2030Pct:     optString(get("Target_2030_Pct")),
			ActionPlanSummary: optString(get("Action_Plan_Summary")),
			Flags:             get("Flags"),
		}
		if row.ReportingYear, err = optInt(get("Reporting_Year")); err != nil {
			return nil, fmt.Errorf("line %d: Reporting_Year: %w", line, err)
		}
		if row.TargetBaseYear, err = optInt(get("Target_Base_Year")); err != nil {
			return nil, fmt.Errorf("line %d: Target_Base_Year: %w", line, err)
		}
		for name, dst := range map[string]**float64{
			"Scope_1_Value":        &row.Scope1Value,
			"Scope_1_Calculated":   &row.Scope1Calculated,
			"Scope_2_Market_Value": &row.Scope2MarketValue,
			"Scope_2_Calculated":   &row.Scope2Calculated,
		} {
			if *dst, err = optFloat(get(name)); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
		}
		row.AssurancePresent, _ = strconv.ParseBool(get("Assurance_Present"))

		rows = append(rows, row)
	}
	return rows, nil
}

// ReadCSVFile reads an export from disk. A missing file reads as no rows.
func ReadCSVFile(path string) ([]types.ExportRow, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []types.ExportRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func rowValues(r types.ExportRow) []string {
	return []string{
		r.Company,
		fmtInt(r.ReportingYear),
		fmtFloat(r.Scope1Value),
		fmtString(r.Scope1Unit),
		fmtFloat(r.Scope1Calculated),
		fmtFloat(r.Scope2MarketValue),
		fmtString(r.Scope2MarketUnit),
		fmtFloat(r.Scope2Calculated),
		strconv.FormatBool(r.AssurancePresent),
		fmtString(r.Target2030Pct),
		fmtInt(r.TargetBaseYear),
		fmtString(r.ActionPlanSummary),
		r.Flags,
	}
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func fmtString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	// Spreadsheet round-trips turn 2023 into 2023.0.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	v := int(f)
	return &v, nil
}

func optFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
