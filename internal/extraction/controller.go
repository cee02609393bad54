// Package extraction drives the multi-pass retrieval loop: it walks successive windows
// of ranked pages, asks the model for the fields still missing, and folds each answer
// into one record.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/esg-extractor/internal/fields"
	"github.com/jonathan/esg-extractor/internal/types"
)

// ContentProvider renders or extracts the requested pages, one item per index in the
// order requested. A blank page yields empty content, not an error.
type ContentProvider interface {
	Materialize(ctx context.Context, pages []int) ([]types.Content, error)
}

// ModelCall asks a model for structured fields from page content.
type ModelCall interface {
	ExtractFields(ctx context.Context, content []types.Content, missing []string) (*types.PartialRecord, error)
}

type passKey struct{}

// WithPass returns a copy of ctx carrying the 1-based pass number of a model call.
func WithPass(ctx context.Context, pass int) context.Context {
	return context.WithValue(ctx, passKey{}, pass)
}

// PassFromContext returns the pass number set by WithPass, or 0 outside a run.
func PassFromContext(ctx context.Context) int {
	pass, _ := ctx.Value(passKey{}).(int)
	return pass
}

// State is a controller state.
type State string

const (
	StateRunning    State = "running"
	StateEvaluating State = "evaluating"
	StateDone       State = "done"
)

// Reason is why a run reached StateDone.
type Reason string

const (
	ReasonComplete  Reason = "complete"
	ReasonMaxPasses Reason = "max_passes"
	ReasonExhausted Reason = "exhausted"
	ReasonCancelled Reason = "cancelled"
)

// Outcome describes what a single pass contributed.
type Outcome string

const (
	OutcomeMerged        Outcome = "merged"
	OutcomeNoContent     Outcome = "no_content"
	OutcomeProviderError Outcome = "provider_error"
	OutcomeModelError    Outcome = "model_error"
)

// Default option values
const (
	DefaultMaxPasses      = 3
	DefaultPageWindowSize = 10
	DefaultPassTimeout    = 120 * time.Second
)

// Options bound a run.
type Options struct {
	MaxPasses      int
	PageWindowSize int
	// PassTimeout bounds each model call. Zero means no per-pass timeout.
	PassTimeout time.Duration
}

// DefaultOptions returns three passes over windows of ten pages.
func DefaultOptions() Options {
	return Options{
		MaxPasses:      DefaultMaxPasses,
		PageWindowSize: DefaultPageWindowSize,
		PassTimeout:    DefaultPassTimeout,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.MaxPasses < 1 {
		return &OptionsError{Field: "max_passes", Message: fmt.Sprintf("must be at least 1, got %d", o.MaxPasses)}
	}
	if o.PageWindowSize < 1 {
		return &OptionsError{Field: "page_window_size", Message: fmt.Sprintf("must be at least 1, got %d", o.PageWindowSize)}
	}
	if o.PassTimeout < 0 {
		return &OptionsError{Field: "pass_timeout", Message: "cannot be negative"}
	}
	return nil
}

// PassReport records one pass for diagnostics.
type PassReport struct {
	Pass          int           `json:"pass"`
	Pages         []int         `json:"pages"`
	MissingBefore []string      `json:"missing_before"`
	MissingAfter  []string      `json:"missing_after"`
	Reported      []string      `json:"reported,omitempty"`
	Outcome       Outcome       `json:"outcome"`
	Error         string        `json:"error,omitempty"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}

// Result is the outcome of a run. Record is owned by the caller once returned.
type Result struct {
	Record  *types.ESGRecord `json:"record"`
	Missing []string         `json:"missing"`
	Passes  []PassReport     `json:"passes"`
	Reason  Reason           `json:"reason"`
	States  []State          `json:"states"`
}

// Complete reports whether every required field was found.
func (r *Result) Complete() bool {
	return len(r.Missing) == 0
}

// Controller runs the retry loop for one document at a time. It holds no per-run state
// and is safe for concurrent use.
type Controller struct {
	registry *fields.Registry
	opts     Options
	logger   *slog.Logger
}

// NewController validates opts and binds the field registry.
func NewController(registry *fields.Registry, opts Options, logger *slog.Logger) (*Controller, error) {
	if registry == nil {
		return nil, &OptionsError{Field: "registry", Message: "cannot be nil"}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{registry: registry, opts: opts, logger: logger}, nil
}

// Options returns the controller's options.
func (c *Controller) Options() Options {
	return c.opts
}

// run is the mutable state of one Extract call.
type run struct {
	state   State
	pass    int
	record  *types.ESGRecord
	missing []string
	reason  Reason
	passes  []PassReport
	states  []State
}

func (r *run) transition(to State) {
	r.state = to
	r.states = append(r.states, to)
}

func (r *run) finish(reason Reason) {
	r.reason = reason
	r.transition(StateDone)
}

// Extract runs passes over successive windows of ranked until every required field is
// present, MaxPasses passes have run, or the ranked list is exhausted. Pass failures
// never abort the run. If ctx is cancelled the accumulated result is returned together
// with ctx.Err().
func (c *Controller) Extract(ctx context.Context, ranked types.RankedPageList, provider ContentProvider, model ModelCall) (*Result, error) {
	if provider == nil || model == nil {
		return nil, &OptionsError{Message: "content provider and model call are required"}
	}

	r := &run{record: types.NewESGRecord()}
	r.missing = c.registry.Missing(r.record)

	if len(r.missing) == 0 {
		r.finish(ReasonComplete)
	} else {
		r.transition(StateRunning)
	}

	for r.state != StateDone {
		switch r.state {
		case StateRunning:
			c.step(ctx, r, ranked, provider, model)
		case StateEvaluating:
			c.evaluate(ctx, r)
		}
	}

	c.logger.Info("extract.done",
		"reason", r.reason,
		"passes", len(r.passes),
		"missing", r.missing,
	)

	res := &Result{
		Record:  r.record,
		Missing: r.missing,
		Passes:  r.passes,
		Reason:  r.reason,
		States:  r.states,
	}
	if r.reason == ReasonCancelled {
		return res, ctx.Err()
	}
	return res, nil
}

// step runs the next pass, or finishes the run if there is nothing left to inspect.
func (c *Controller) step(ctx context.Context, r *run, ranked types.RankedPageList, provider ContentProvider, model ModelCall) {
	if ctx.Err() != nil {
		r.finish(ReasonCancelled)
		return
	}

	window := ranked.Window(r.pass+1, c.opts.PageWindowSize)
	if len(window) == 0 {
		r.finish(ReasonExhausted)
		return
	}
	r.pass++

	report := c.runPass(ctx, r, window, provider, model)
	r.passes = append(r.passes, report)
	r.transition(StateEvaluating)
}

// evaluate recomputes the missing set and decides whether another pass is warranted.
func (c *Controller) evaluate(ctx context.Context, r *run) {
	r.missing = c.registry.Missing(r.record)
	r.passes[len(r.passes)-1].MissingAfter = append([]string{}, r.missing...)

	switch {
	case len(r.missing) == 0:
		r.finish(ReasonComplete)
	case ctx.Err() != nil:
		r.finish(ReasonCancelled)
	case r.pass >= c.opts.MaxPasses:
		r.finish(ReasonMaxPasses)
	default:
		r.transition(StateRunning)
	}
}

func (c *Controller) runPass(ctx context.Context, r *run, window []int, provider ContentProvider, model ModelCall) PassReport {
	start := time.Now()
	report := PassReport{
		Pass:          r.pass,
		Pages:         window,
		MissingBefore: append([]string{}, r.missing...),
	}
	log := c.logger.With("pass", r.pass)
	log.Info("extract.pass.start", "pages", window, "missing", r.missing)

	content, err := provider.Materialize(ctx, window)
	if err != nil {
		report.Outcome = OutcomeProviderError
		report.Error = err.Error()
		report.Elapsed = time.Since(start)
		log.Warn("extract.pass.content_failed", "err", err)
		return report
	}
	if allEmpty(content) {
		report.Outcome = OutcomeNoContent
		report.Elapsed = time.Since(start)
		log.Warn("extract.pass.no_content")
		return report
	}

	callCtx := WithPass(ctx, r.pass)
	if c.opts.PassTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, c.opts.PassTimeout)
		defer cancel()
	}

	partial, err := model.ExtractFields(callCtx, content, append([]string{}, r.missing...))
	if err != nil {
		report.Outcome = OutcomeModelError
		report.Error = err.Error()
		report.Elapsed = time.Since(start)
		log.Warn("extract.pass.model_failed", "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		return report
	}

	Merge(r.record, partial)
	report.Outcome = OutcomeMerged
	report.Reported = partial.Reported()
	report.Elapsed = time.Since(start)
	log.Info("extract.pass.ok", "reported", report.Reported, "elapsed_ms", time.Since(start).Milliseconds())
	return report
}

func allEmpty(content []types.Content) bool {
	for _, c := range content {
		if !c.Empty() {
			return false
		}
	}
	return true
}
