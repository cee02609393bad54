// Package pipeline drives report extraction end to end: it ranks a PDF's pages, runs the
// multi-pass extraction, finalizes and saves the record, and aggregates batches into the
// tabular export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/esg-extractor/internal/db"
	"github.com/jonathan/esg-extractor/internal/export"
	"github.com/jonathan/esg-extractor/internal/extraction"
	"github.com/jonathan/esg-extractor/internal/fields"
	"github.com/jonathan/esg-extractor/internal/metadata"
	"github.com/jonathan/esg-extractor/internal/observability"
	"github.com/jonathan/esg-extractor/internal/pdf"
	"github.com/jonathan/esg-extractor/internal/ranking"
	"github.com/jonathan/esg-extractor/internal/schemas"
	"github.com/jonathan/esg-extractor/internal/types"
)

// Content modes
const (
	ContentImage = "image"
	ContentText  = "text"
)

// Document statuses
const (
	StatusComplete         = db.StatusComplete
	StatusInsufficientData = db.StatusInsufficientData
	StatusFailed           = "failed"
)

// Progress steps and categories
const (
	StepDocumentStart = "document_start"
	StepRankPages     = "rank_pages"
	StepExtract       = "extract"
	StepSave          = "save"
	StepDocumentDone  = "document_done"
	StepDocumentError = "document_failed"
	StepExport        = "export"
	StepBatchDone     = "batch_complete"

	CategoryIngestion  = "ingestion"
	CategoryExtraction = "extraction"
	CategoryExport     = "export"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Document string `json:"document,omitempty"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs. It may be called from
// several goroutines at once during a batch.
type ProgressCallback func(event ProgressEvent)

// ModelFactory returns the model call for one document, given its fallback company.
type ModelFactory func(company string) extraction.ModelCall

// RecordStore persists finalized records. *db.DB satisfies it.
type RecordStore interface {
	SaveRecord(ctx context.Context, in *db.RecordInput) (uuid.UUID, error)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Registry   *fields.Registry
	Ranker     *ranking.Ranker
	Controller *extraction.Controller
	Model      ModelFactory
	// Rasterizer renders pages for image content. Nil forces text content.
	Rasterizer pdf.Rasterizer
	// Store is optional.
	Store   RecordStore
	Logger  *slog.Logger
	Printer *observability.Printer
}

// Options configures a Pipeline.
type Options struct {
	OutputDir     string
	DataDir       string
	ContentMode   string
	DPI           int
	MaxConcurrent int
	XLSX          bool
	Verbose       bool
	OnProgress    ProgressCallback
}

// DocumentResult is the outcome of processing one report.
type DocumentResult struct {
	Path       string                  `json:"path"`
	Record     *types.ESGRecord        `json:"record,omitempty"`
	Missing    []string                `json:"missing"`
	Status     string                  `json:"status"`
	Reason     extraction.Reason       `json:"reason,omitempty"`
	Passes     []extraction.PassReport `json:"passes,omitempty"`
	OutputPath string                  `json:"output_path,omitempty"`
	Err        error                   `json:"-"`
	Error      string                  `json:"error,omitempty"`
}

// Pipeline processes reports. It is safe for concurrent use.
type Pipeline struct {
	deps Deps
	opts Options
	now  func() time.Time
	// exportMu serializes Export; copies made by WithProgress share it.
	exportMu *sync.Mutex
}

// New validates deps and fills option defaults.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Registry == nil || deps.Ranker == nil || deps.Controller == nil || deps.Model == nil {
		return nil, fmt.Errorf("pipeline requires a registry, ranker, controller and model")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	if opts.DataDir == "" {
		opts.DataDir = filepath.Join("data", "csv_data")
	}
	switch opts.ContentMode {
	case "":
		opts.ContentMode = ContentImage
	case ContentImage, ContentText:
	default:
		return nil, fmt.Errorf("unknown content mode %q", opts.ContentMode)
	}
	if opts.DPI <= 0 {
		opts.DPI = pdf.DefaultDPI
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Pipeline{deps: deps, opts: opts, now: time.Now, exportMu: &sync.Mutex{}}, nil
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// WithProgress returns a copy of p that reports progress to cb instead.
func (p *Pipeline) WithProgress(cb ProgressCallback) *Pipeline {
	cp := *p
	cp.opts.OnProgress = cb
	return &cp
}

// ProcessDocument extracts, finalizes and saves one report. Failures are reported in
// the result's Err as a *DocumentError.
func (p *Pipeline) ProcessDocument(ctx context.Context, path string) *DocumentResult {
	return p.processDocument(ctx, uuid.Nil, path, 0, 1)
}

func (p *Pipeline) processDocument(ctx context.Context, runID uuid.UUID, path string, index, total int) *DocumentResult {
	start := time.Now()
	name := filepath.Base(path)
	log := p.deps.Logger.With("doc", name)
	res := &DocumentResult{Path: path, Missing: []string{}}

	emit := func(step, category, message string, content any) {
		if p.opts.OnProgress == nil {
			return
		}
		ev := ProgressEvent{
			Step:     step,
			Category: category,
			Message:  message,
			Document: name,
			Index:    index,
			Total:    total,
			Content:  content,
		}
		if runID != uuid.Nil {
			ev.RunID = runID.String()
		}
		p.opts.OnProgress(ev)
	}
	fail := func(stage, message string, cause error) *DocumentResult {
		res.Status = StatusFailed
		res.Err = &DocumentError{Path: path, Stage: stage, Message: message, Cause: cause}
		res.Error = res.Err.Error()
		log.Error("pipeline.document.failed", "stage", stage, "err", res.Err, "elapsed_ms", time.Since(start).Milliseconds())
		emit(StepDocumentError, CategoryExtraction, res.Error, nil)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(StageExtract, "cancelled before start", err)
	}

	md := metadata.FromPath(path)
	log.Info("pipeline.document.start", "company", md.Company, "year", md.Year)
	emit(StepDocumentStart, CategoryIngestion, fmt.Sprintf("Processing %s", name), md)

	doc, err := pdf.Open(path)
	if err != nil {
		return fail(StageOpen, "cannot read PDF", err)
	}

	pages := doc.Pages()
	scored := p.deps.Ranker.Scored(pages)
	ranked := make(types.RankedPageList, len(scored))
	for i, s := range scored {
		ranked[i] = s.Index
	}
	if p.opts.Verbose && p.deps.Printer != nil {
		p.deps.Printer.PrintRanking(name, scored)
	}
	emit(StepRankPages, CategoryIngestion, fmt.Sprintf("Ranked %d pages", len(ranked)), nil)

	result, err := p.deps.Controller.Extract(ctx, ranked, p.provider(doc), p.deps.Model(md.Company))
	if err != nil {
		if result != nil {
			res.Passes = result.Passes
			res.Reason = result.Reason
		}
		return fail(StageExtract, "extraction did not finish", err)
	}
	res.Passes = result.Passes
	res.Reason = result.Reason
	res.Missing = result.Missing
	if p.opts.Verbose && p.deps.Printer != nil {
		p.deps.Printer.PrintPasses(result.Passes, result.Reason)
	}
	emit(StepExtract, CategoryExtraction, fmt.Sprintf("Extraction stopped: %s after %d passes", result.Reason, len(result.Passes)), result.Missing)

	rec := Finalize(result.Record, md, name, p.now())
	if err := schemas.ValidateRecord(rec); err != nil {
		return fail(StageValidate, "record failed schema validation", err)
	}
	res.Record = rec
	res.Status = StatusComplete
	if !result.Complete() {
		res.Status = StatusInsufficientData
	}
	if p.opts.Verbose && p.deps.Printer != nil {
		p.deps.Printer.PrintRecord(rec, res.Missing)
	}

	out, err := export.SaveRecord(p.opts.OutputDir, rec)
	if err != nil {
		return fail(StageSave, "cannot write record", err)
	}
	res.OutputPath = out

	if p.deps.Store != nil {
		if _, err := p.deps.Store.SaveRecord(ctx, &db.RecordInput{RunID: runID, Record: rec, Status: res.Status, Missing: res.Missing}); err != nil {
			log.Warn("pipeline.document.db_save_failed", "err", err)
		}
	}
	emit(StepSave, CategoryExport, fmt.Sprintf("Saved %s", out), nil)

	log.Info("pipeline.document.ok",
		"company", rec.Meta.CompanyName,
		"year", rec.Meta.ReportingYear,
		"status", res.Status,
		"passes", len(res.Passes),
		"missing", res.Missing,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	emit(StepDocumentDone, CategoryExtraction, fmt.Sprintf("%s %d: %s", rec.Meta.CompanyName, rec.Meta.ReportingYear, res.Status), res.Status)
	return res
}

func (p *Pipeline) provider(doc *pdf.Document) extraction.ContentProvider {
	if p.opts.ContentMode == ContentText || p.deps.Rasterizer == nil {
		return pdf.NewTextProvider(doc)
	}
	return pdf.NewImageProvider(doc, p.deps.Rasterizer, pdf.ImageOptions{
		DPI:          p.opts.DPI,
		FallbackText: true,
		Logger:       p.deps.Logger,
	})
}

// Finalize returns a copy of rec with the model's company and year preferred over the
// path-derived fallbacks, Meta filled in, and an unreported assurance set to false.
func Finalize(rec *types.ESGRecord, md metadata.Metadata, filename string, now time.Time) *types.ESGRecord {
	out := rec.Clone()
	if out == nil {
		out = types.NewESGRecord()
	}

	company := md.Company
	if out.CompanyName != nil && strings.TrimSpace(*out.CompanyName) != "" {
		company = strings.TrimSpace(*out.CompanyName)
	}
	year := md.Year
	if out.ReportingYear != nil {
		year = *out.ReportingYear
	}

	out.CompanyName = types.Ptr(company)
	if out.AssurancePresent == nil {
		out.AssurancePresent = types.Ptr(false)
	}
	if out.Targets == nil {
		out.Targets = []types.Target{}
	}
	out.Meta = &types.RecordMeta{
		CompanyName:   company,
		ReportingYear: year,
		Filename:      filename,
		Timestamp:     now.UTC().Format(time.RFC3339),
	}
	return out
}

// ErrNoRecords is returned by RunBatch when no document produced a record.
var ErrNoRecords = errors.New("failed to extract data from any PDF")
