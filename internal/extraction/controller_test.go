package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonathan/esg-extractor/internal/fields"
	"github.com/jonathan/esg-extractor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls [][]int
	err   map[int]error // keyed by call number, 1-based
	blank map[int]bool
}

func (p *fakeProvider) Materialize(_ context.Context, pages []int) ([]types.Content, error) {
	p.calls = append(p.calls, pages)
	n := len(p.calls)
	if err := p.err[n]; err != nil {
		return nil, err
	}
	out := make([]types.Content, 0, len(pages))
	for _, idx := range pages {
		c := types.Content{PageIndex: idx, MIMEType: "text/plain"}
		if !p.blank[n] {
			c.Text = fmt.Sprintf("page %d", idx)
		}
		out = append(out, c)
	}
	return out, nil
}

type modelStep func(ctx context.Context) (*types.PartialRecord, error)

type scriptedModel struct {
	steps   []modelStep
	missing [][]string
	passes  []int
}

func (m *scriptedModel) ExtractFields(ctx context.Context, _ []types.Content, missing []string) (*types.PartialRecord, error) {
	m.missing = append(m.missing, missing)
	m.passes = append(m.passes, PassFromContext(ctx))
	n := len(m.missing)
	if n > len(m.steps) {
		return &types.PartialRecord{}, nil
	}
	return m.steps[n-1](ctx)
}

func returns(p *types.PartialRecord) modelStep {
	return func(context.Context) (*types.PartialRecord, error) { return p, nil }
}

func fails(err error) modelStep {
	return func(context.Context) (*types.PartialRecord, error) { return nil, err }
}

func rankedOf(n int) types.RankedPageList {
	l := make(types.RankedPageList, n)
	for i := range l {
		l[i] = n - 1 - i
	}
	return l
}

func newTestController(t *testing.T, reg *fields.Registry, opts Options) *Controller {
	t.Helper()
	c, err := NewController(reg, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func registryOf(t *testing.T, required ...string) *fields.Registry {
	t.Helper()
	fs := make([]fields.Field, 0, len(required))
	for _, name := range required {
		fs = append(fs, fields.Field{Name: name, Required: true})
	}
	reg, err := fields.NewRegistry(fs...)
	require.NoError(t, err)
	return reg
}

func TestExtract_FullSuccessOnFirstPass(t *testing.T) {
	reg := registryOf(t, types.FieldScope1, types.FieldScope2Market)
	c := newTestController(t, reg, DefaultOptions())

	provider := &fakeProvider{}
	model := &scriptedModel{steps: []modelStep{returns(&types.PartialRecord{
		Scope1:       &types.EmissionValue{Value: types.Ptr(100.0), Unit: types.Ptr("tCO2e")},
		Scope2Market: &types.EmissionValue{Value: types.Ptr(50.0), Unit: types.Ptr("tCO2e")},
	})}}

	res, err := c.Extract(context.Background(), rankedOf(5), provider, model)
	require.NoError(t, err)

	assert.Equal(t, ReasonComplete, res.Reason)
	assert.Empty(t, res.Missing)
	assert.True(t, res.Complete())
	require.Len(t, res.Passes, 1)
	assert.Equal(t, []int{4, 3, 2, 1, 0}, res.Passes[0].Pages)
	assert.Equal(t, OutcomeMerged, res.Passes[0].Outcome)
	assert.Equal(t, []State{StateRunning, StateEvaluating, StateDone}, res.States)
	assert.Equal(t, [][]string{{types.FieldScope1, types.FieldScope2Market}}, model.missing)
}

func TestExtract_ExhaustsMaxPasses(t *testing.T) {
	reg := registryOf(t, types.FieldScope1, types.FieldAssurancePresent)
	c := newTestController(t, reg, Options{MaxPasses: 3, PageWindowSize: 10})

	ranked := rankedOf(25)
	provider := &fakeProvider{}
	model := &scriptedModel{steps: []modelStep{
		returns(&types.PartialRecord{Scope1: &types.EmissionValue{Value: types.Ptr(1.0)}}),
		returns(&types.PartialRecord{}),
		returns(&types.PartialRecord{}),
	}}

	res, err := c.Extract(context.Background(), ranked, provider, model)
	require.NoError(t, err)

	assert.Equal(t, ReasonMaxPasses, res.Reason)
	assert.Len(t, res.Passes, 3)
	assert.Nil(t, res.Record.AssurancePresent)
	assert.Equal(t, []string{types.FieldAssurancePresent}, res.Missing)

	require.Len(t, provider.calls, 3)
	assert.Equal(t, []int(ranked[0:10]), provider.calls[0])
	assert.Equal(t, []int(ranked[10:20]), provider.calls[1])
	assert.Equal(t, []int(ranked[20:25]), provider.calls[2])

	// Later passes ask only for what is still missing.
	assert.Equal(t, []string{types.FieldAssurancePresent}, model.missing[1])
	assert.Equal(t, StateDone, res.States[len(res.States)-1])
}

func TestExtract_ModelFailureMidRun(t *testing.T) {
	reg := registryOf(t, types.FieldScope1, types.FieldScope2Market, types.FieldTargets)
	c := newTestController(t, reg, Options{MaxPasses: 3, PageWindowSize: 2})

	model := &scriptedModel{steps: []modelStep{
		returns(&types.PartialRecord{Scope1: &types.EmissionValue{Value: types.Ptr(7.0), Unit: types.Ptr("tCO2e")}}),
		fails(errors.New("provider unavailable")),
		returns(&types.PartialRecord{Scope2Market: &types.EmissionValue{Value: types.Ptr(3.0)}}),
	}}

	res, err := c.Extract(context.Background(), rankedOf(6), &fakeProvider{}, model)
	require.NoError(t, err)

	require.Len(t, res.Passes, 3)
	assert.Equal(t, OutcomeModelError, res.Passes[1].Outcome)
	assert.Contains(t, res.Passes[1].Error, "provider unavailable")
	assert.Equal(t, res.Passes[0].MissingAfter, res.Passes[1].MissingAfter)

	assert.Equal(t, 7.0, *res.Record.Scope1.Value)
	assert.Equal(t, 3.0, *res.Record.Scope2Market.Value)
	assert.Equal(t, []string{types.FieldTargets}, res.Missing)
	assert.Equal(t, ReasonMaxPasses, res.Reason)
}

func TestExtract_PassNumberReachesModel(t *testing.T) {
	reg := registryOf(t, types.FieldScope1)
	c := newTestController(t, reg, Options{MaxPasses: 3, PageWindowSize: 2, PassTimeout: time.Minute})

	model := &scriptedModel{steps: []modelStep{
		fails(errors.New("bad gateway")),
		returns(&types.PartialRecord{}),
	}}

	res, err := c.Extract(context.Background(), rankedOf(6), &fakeProvider{}, model)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, model.passes)
	// A failed first pass leaves the missing set unchanged for the second.
	assert.Equal(t, model.missing[0], model.missing[1])
	assert.Equal(t, ReasonMaxPasses, res.Reason)
	assert.Zero(t, PassFromContext(context.Background()))
}

func TestExtract_RankedListExhausted(t *testing.T) {
	reg := registryOf(t, types.FieldTargets)
	c := newTestController(t, reg, Options{MaxPasses: 5, PageWindowSize: 10})

	provider := &fakeProvider{}
	res, err := c.Extract(context.Background(), rankedOf(12), provider, &scriptedModel{})
	require.NoError(t, err)

	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Len(t, res.Passes, 2)
	assert.Len(t, provider.calls[1], 2)
	assert.Equal(t, []string{types.FieldTargets}, res.Missing)
}

func TestExtract_EmptyRankedList(t *testing.T) {
	c := newTestController(t, fields.DefaultRegistry(), DefaultOptions())

	provider := &fakeProvider{}
	model := &scriptedModel{}
	res, err := c.Extract(context.Background(), nil, provider, model)
	require.NoError(t, err)

	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Empty(t, res.Passes)
	assert.Empty(t, provider.calls)
	assert.Empty(t, model.missing)
	assert.Equal(t, []State{StateRunning, StateDone}, res.States)
	assert.Equal(t, fields.DefaultRegistry().Required(), res.Missing)
}

func TestExtract_ProviderFailureSkipsModel(t *testing.T) {
	reg := registryOf(t, types.FieldScope1)
	c := newTestController(t, reg, Options{MaxPasses: 2, PageWindowSize: 1})

	provider := &fakeProvider{err: map[int]error{1: errors.New("pdftoppm: exit status 1")}}
	model := &scriptedModel{steps: []modelStep{
		returns(&types.PartialRecord{Scope1: &types.EmissionValue{Value: types.Ptr(1.0)}}),
	}}

	res, err := c.Extract(context.Background(), rankedOf(3), provider, model)
	require.NoError(t, err)

	assert.Equal(t, OutcomeProviderError, res.Passes[0].Outcome)
	assert.Len(t, model.missing, 1)
	assert.Equal(t, ReasonComplete, res.Reason)
	assert.Len(t, res.Passes, 2)
}

func TestExtract_BlankContentSkipsModel(t *testing.T) {
	reg := registryOf(t, types.FieldScope1)
	c := newTestController(t, reg, Options{MaxPasses: 2, PageWindowSize: 2})

	provider := &fakeProvider{blank: map[int]bool{1: true, 2: true}}
	model := &scriptedModel{}

	res, err := c.Extract(context.Background(), rankedOf(4), provider, model)
	require.NoError(t, err)

	assert.Empty(t, model.missing)
	assert.Equal(t, OutcomeNoContent, res.Passes[0].Outcome)
	assert.Equal(t, OutcomeNoContent, res.Passes[1].Outcome)
	assert.Equal(t, ReasonMaxPasses, res.Reason)
}

func TestExtract_PassTimeout(t *testing.T) {
	reg := registryOf(t, types.FieldScope1)
	c := newTestController(t, reg, Options{MaxPasses: 2, PageWindowSize: 1, PassTimeout: 20 * time.Millisecond})

	model := &scriptedModel{steps: []modelStep{
		func(ctx context.Context) (*types.PartialRecord, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		returns(&types.PartialRecord{Scope1: &types.EmissionValue{Value: types.Ptr(2.0)}}),
	}}

	res, err := c.Extract(context.Background(), rankedOf(2), &fakeProvider{}, model)
	require.NoError(t, err)

	assert.Equal(t, OutcomeModelError, res.Passes[0].Outcome)
	assert.Contains(t, res.Passes[0].Error, context.DeadlineExceeded.Error())
	assert.Equal(t, ReasonComplete, res.Reason)
}

func TestExtract_Cancelled(t *testing.T) {
	reg := registryOf(t, types.FieldScope1, types.FieldTargets)
	c := newTestController(t, reg, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := &scriptedModel{steps: []modelStep{
		func(ctx context.Context) (*types.PartialRecord, error) {
			cancel()
			return &types.PartialRecord{Scope1: &types.EmissionValue{Value: types.Ptr(4.0)}}, nil
		},
	}}

	res, err := c.Extract(ctx, rankedOf(30), &fakeProvider{}, model)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)

	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.Len(t, res.Passes, 1)
	assert.Equal(t, 4.0, *res.Record.Scope1.Value)
}

func TestExtract_TerminatesWithinMaxPasses(t *testing.T) {
	for maxPasses := 1; maxPasses <= 4; maxPasses++ {
		t.Run(fmt.Sprintf("max_passes=%d", maxPasses), func(t *testing.T) {
			c := newTestController(t, fields.DefaultRegistry(), Options{MaxPasses: maxPasses, PageWindowSize: 1})
			model := &scriptedModel{}

			res, err := c.Extract(context.Background(), rankedOf(100), &fakeProvider{}, model)
			require.NoError(t, err)
			assert.Len(t, res.Passes, maxPasses)
			assert.Len(t, model.missing, maxPasses)
			assert.Equal(t, ReasonMaxPasses, res.Reason)
		})
	}
}

func TestNewController_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		reg  *fields.Registry
		opts Options
	}{
		{"zero passes", fields.DefaultRegistry(), Options{MaxPasses: 0, PageWindowSize: 10}},
		{"zero window", fields.DefaultRegistry(), Options{MaxPasses: 3, PageWindowSize: 0}},
		{"negative timeout", fields.DefaultRegistry(), Options{MaxPasses: 3, PageWindowSize: 10, PassTimeout: -time.Second}},
		{"nil registry", nil, DefaultOptions()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewController(tt.reg, tt.opts, nil)
			var optErr *OptionsError
			assert.True(t, errors.As(err, &optErr))
		})
	}
}

func TestExtract_NilCollaborators(t *testing.T) {
	c := newTestController(t, fields.DefaultRegistry(), DefaultOptions())
	_, err := c.Extract(context.Background(), rankedOf(1), nil, &scriptedModel{})

	var optErr *OptionsError
	assert.ErrorAs(t, err, &optErr)
}
