package export

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jonathan/esg-extractor/internal/fields"
	"github.com/jonathan/esg-extractor/internal/types"
)

// Aggregate file names under the data directory.
const (
	CSVFilename  = "data.csv"
	XLSXFilename = "data.xlsx"
)

// Aggregate is the result of rebuilding the tabular export.
type Aggregate struct {
	Rows     []types.ExportRow
	CSVPath  string
	XLSXPath string
}

// AggregateOptions configures Rebuild.
type AggregateOptions struct {
	OutputDir string
	DataDir   string
	Registry  *fields.Registry
	XLSX      bool
	Logger    *slog.Logger
}

// Rebuild reads every saved record under OutputDir and rewrites DataDir/data.csv (and
// data.xlsx when XLSX is set) from them.
func Rebuild(opts AggregateOptions) (*Aggregate, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	records, err := LoadRecords(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	agg := &Aggregate{
		Rows:    BuildRows(records, opts.Registry),
		CSVPath: filepath.Join(opts.DataDir, CSVFilename),
	}

	if err := WriteCSVFile(agg.CSVPath, agg.Rows); err != nil {
		return nil, err
	}
	logger.Info("export.csv.ok", "path", agg.CSVPath, "rows", len(agg.Rows))

	if opts.XLSX {
		data, err := WriteXLSX(agg.Rows)
		if err != nil {
			return nil, err
		}
		agg.XLSXPath = filepath.Join(opts.DataDir, XLSXFilename)
		if err := writeFileAtomic(agg.XLSXPath, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", agg.XLSXPath, err)
		}
		logger.Info("export.xlsx.ok", "path", agg.XLSXPath, "rows", len(agg.Rows))
	}

	logger.Info("export.done", "rows", len(agg.Rows), "elapsed_ms", time.Since(start).Milliseconds())
	return agg, nil
}
