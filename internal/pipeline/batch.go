package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/esg-extractor/internal/export"
)

// BatchResult is the outcome of RunBatch. Results are in input order.
type BatchResult struct {
	RunID    uuid.UUID        `json:"run_id"`
	Results  []DocumentResult `json:"results"`
	CSVPath  string           `json:"csv_path,omitempty"`
	XLSXPath string           `json:"xlsx_path,omitempty"`
	Rows     int              `json:"rows"`
}

// Counts returns the number of complete, insufficient and failed documents.
func (b *BatchResult) Counts() (complete, insufficient, failed int) {
	for _, r := range b.Results {
		switch r.Status {
		case StatusComplete:
			complete++
		case StatusInsufficientData:
			insufficient++
		default:
			failed++
		}
	}
	return complete, insufficient, failed
}

// Succeeded reports how many documents produced a record.
func (b *BatchResult) Succeeded() int {
	c, i, _ := b.Counts()
	return c + i
}

// RunBatch processes paths with at most MaxConcurrent documents in flight. One
// document failing never affects the others. When at least one record was produced
// the aggregated export is rebuilt from every saved record. On cancellation the
// partial result is returned with ctx.Err().
func (p *Pipeline) RunBatch(ctx context.Context, paths []string) (*BatchResult, error) {
	start := time.Now()
	batch := &BatchResult{
		RunID:   uuid.New(),
		Results: make([]DocumentResult, len(paths)),
	}
	log := p.deps.Logger.With("run_id", batch.RunID)
	log.Info("pipeline.batch.start", "documents", len(paths), "max_concurrent", p.opts.MaxConcurrent)

	var g errgroup.Group
	g.SetLimit(p.opts.MaxConcurrent)
	for i, path := range paths {
		g.Go(func() error {
			batch.Results[i] = *p.processDocument(ctx, batch.RunID, path, i, len(paths))
			return nil
		})
	}
	_ = g.Wait()

	complete, insufficient, failed := batch.Counts()
	log.Info("pipeline.batch.done",
		"complete", complete,
		"insufficient", insufficient,
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if p.opts.Verbose && p.deps.Printer != nil {
		p.deps.Printer.PrintSummary(len(paths), complete, insufficient, failed)
	}

	if err := ctx.Err(); err != nil {
		return batch, err
	}
	if batch.Succeeded() == 0 {
		return batch, ErrNoRecords
	}

	agg, err := p.Export()
	if err != nil {
		return batch, fmt.Errorf("export failed: %w", err)
	}
	batch.CSVPath = agg.CSVPath
	batch.XLSXPath = agg.XLSXPath
	batch.Rows = len(agg.Rows)

	p.emitBatch(batch, StepBatchDone, fmt.Sprintf("Processed %d documents: %d complete, %d insufficient, %d failed",
		len(paths), complete, insufficient, failed))
	return batch, nil
}

// Export rebuilds the aggregated CSV (and XLSX when enabled) from saved records. Calls
// are serialized so the newest saved records always end up in the export.
func (p *Pipeline) Export() (*export.Aggregate, error) {
	p.exportMu.Lock()
	defer p.exportMu.Unlock()
	return export.Rebuild(export.AggregateOptions{
		OutputDir: p.opts.OutputDir,
		DataDir:   p.opts.DataDir,
		Registry:  p.deps.Registry,
		XLSX:      p.opts.XLSX,
		Logger:    p.deps.Logger,
	})
}

func (p *Pipeline) emitBatch(batch *BatchResult, step, message string) {
	if p.opts.OnProgress == nil {
		return
	}
	p.opts.OnProgress(ProgressEvent{
		Step:     step,
		Category: CategoryExport,
		Message:  message,
		RunID:    batch.RunID.String(),
		Index:    len(batch.Results),
		Total:    len(batch.Results),
		Content:  batch,
	})
}

// FindPDFs returns every *.pdf below dir, sorted.
func FindPDFs(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("input directory not found: %s", dir)
		}
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
