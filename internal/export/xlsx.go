package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jonathan/esg-extractor/internal/types"
)

// SheetName is the worksheet holding the export.
const SheetName = "ESG Data"

// WriteXLSX returns the rows as an XLSX workbook with one sheet.
func WriteXLSX(rows []types.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for r, row := range rows {
		values := []any{
			row.Company,
			cellInt(row.ReportingYear),
			cellFloat(row.Scope1Value),
			cellString(row.Scope1Unit),
			cellFloat(row.Scope1Calculated),
			cellFloat(row.Scope2MarketValue),
			cellString(row.Scope2MarketUnit),
			cellFloat(row.Scope2Calculated),
			row.AssurancePresent,
			cellString(row.Target2030Pct),
			cellInt(row.TargetBaseYear),
			cellString(row.ActionPlanSummary),
			row.Flags,
		}
		for c, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(SheetName, cell, v)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 24) // company
	_ = f.SetColWidth(SheetName, "B", "I", 16) // figures
	_ = f.SetColWidth(SheetName, "J", "K", 14) // target
	_ = f.SetColWidth(SheetName, "L", "L", 60) // action plan
	_ = f.SetColWidth(SheetName, "M", "M", 40) // flags
	_ = f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func cellInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func cellFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func cellString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
