package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jonathan/esg-extractor/internal/extraction"
	"github.com/jonathan/esg-extractor/internal/fields"
	"github.com/jonathan/esg-extractor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ extraction.ModelCall = (*ESGExtractor)(nil)

type fakeClient struct {
	response string
	err      error

	prompt string
	parts  []Part
	tier   ModelTier
}

func (f *fakeClient) GenerateContent(context.Context, string, ModelTier) (string, error) {
	return f.response, f.err
}

func (f *fakeClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return f.GenerateJSONFromParts(ctx, prompt, nil, tier)
}

func (f *fakeClient) GenerateJSONFromParts(_ context.Context, prompt string, parts []Part, tier ModelTier) (string, error) {
	f.prompt, f.parts, f.tier = prompt, parts, tier
	return f.response, f.err
}

func (f *fakeClient) GetModel(ModelTier) string { return "fake-model" }
func (f *fakeClient) Close() error              { return nil }

func newTestExtractor(client Client) *ESGExtractor {
	return NewESGExtractor(client, fields.DefaultRegistry(), ESGExtractorOptions{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestExtractFields_DecodesResponse(t *testing.T) {
	client := &fakeClient{response: "```json\n" + `{
		"company_name": "Acme",
		"scope_1": {"value": 482123, "unit": "tCO2e"},
		"scope_2_market": null,
		"assurance_present": false,
		"targets": [{"target_reduction_percentage": "30%", "target_year": 2030, "base_year": 2019}]
	}` + "\n```"}
	e := newTestExtractor(client)

	content := []types.Content{
		{PageIndex: 3, MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		{PageIndex: 7, MIMEType: "image/png"},
	}
	partial, err := e.ExtractFields(context.Background(), content, fields.DefaultRegistry().Required())
	require.NoError(t, err)

	assert.Equal(t, "Acme", *partial.CompanyName)
	assert.Equal(t, 482123.0, *partial.Scope1.Value)
	assert.Nil(t, partial.Scope2Market)
	require.NotNil(t, partial.AssurancePresent)
	assert.False(t, *partial.AssurancePresent)
	require.Len(t, partial.Targets, 1)
	assert.Equal(t, 2030, partial.Targets[0].TargetYear)

	// Only the page with image bytes is sent.
	require.Len(t, client.parts, 1)
	assert.Equal(t, TierStandard, client.tier)
}

func TestExtractFields_APIError(t *testing.T) {
	apiErr := &APICallError{Provider: ProviderOpenAI, Message: "chat completion failed", Cause: errors.New("429")}
	e := newTestExtractor(&fakeClient{err: apiErr})

	_, err := e.ExtractFields(context.Background(), []types.Content{{PageIndex: 0, Text: "Scope 1"}}, nil)

	var got *APICallError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, ProviderOpenAI, got.Provider)
}

func TestExtractFields_MalformedResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "I could not find anything"},
		{"schema mismatch", `{"scope_1": {"value": "482,123"}}`},
		{"truncated", `{"company_name": "Acme"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(&fakeClient{response: tt.response})
			_, err := e.ExtractFields(context.Background(), []types.Content{{Text: "page"}}, nil)

			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestExtractFields_NoContent(t *testing.T) {
	client := &fakeClient{response: "{}"}
	_, err := newTestExtractor(client).ExtractFields(context.Background(), nil, nil)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Empty(t, client.prompt)
}

func TestBuildPrompt_FirstPass(t *testing.T) {
	e := newTestExtractor(&fakeClient{}).ForDocument("Acme")
	reg := fields.DefaultRegistry()

	for _, pass := range []int{0, 1} {
		prompt, err := e.BuildPrompt(pass, []types.Content{
			{PageIndex: 4, Text: "Scope 1 emissions: 1,200 tCO2e"},
			{PageIndex: 9},
		}, reg.Required())
		require.NoError(t, err)

		assert.Contains(t, prompt, "ESG data analyst")
		assert.Contains(t, prompt, "Analyze these pages of the Acme report")
		assert.NotContains(t, prompt, "MISSING")
		assert.Contains(t, prompt, "--- Page 5 ---\nScope 1 emissions: 1,200 tCO2e")
		assert.NotContains(t, prompt, "--- Page 10 ---")
		// The opening pass asks for the whole record.
		for _, f := range reg.Fields() {
			assert.Contains(t, prompt, `"`+f.Name+`":`)
		}
	}
}

func TestBuildPrompt_FollowUpPass(t *testing.T) {
	e := newTestExtractor(&fakeClient{})

	prompt, err := e.BuildPrompt(2, []types.Content{{MIMEType: "image/png", Data: []byte{1}}},
		[]string{types.FieldScope2Market, types.FieldTargets})
	require.NoError(t, err)

	assert.Contains(t, prompt, "MISSING: scope_2_market, targets")
	assert.Contains(t, prompt, `"targets": [`)
	assert.Contains(t, prompt, `"scope_2_market": {`)
	assert.Contains(t, prompt, "still missing")
	assert.NotContains(t, prompt, "Input text:")
	// Fields already found are left out of later passes.
	for _, name := range []string{types.FieldCompanyName, types.FieldScope1, types.FieldReportingYear, types.FieldActionPlanSummary} {
		assert.NotContains(t, prompt, `"`+name+`":`)
	}
}

func TestBuildPrompt_FollowUpAfterFailedFirstPass(t *testing.T) {
	e := newTestExtractor(&fakeClient{})
	required := fields.DefaultRegistry().Required()

	prompt, err := e.BuildPrompt(2, []types.Content{{Text: "page"}}, required)
	require.NoError(t, err)

	assert.Contains(t, prompt, "MISSING: "+strings.Join(required, ", "))
	assert.NotContains(t, prompt, `"`+types.FieldReportingYear+`":`)
}

func TestExtractFields_UsesPassFromContext(t *testing.T) {
	client := &fakeClient{response: "{}"}
	e := newTestExtractor(client)
	required := fields.DefaultRegistry().Required()

	_, err := e.ExtractFields(extraction.WithPass(context.Background(), 1), []types.Content{{Text: "page"}}, required)
	require.NoError(t, err)
	assert.NotContains(t, client.prompt, "MISSING")

	_, err = e.ExtractFields(extraction.WithPass(context.Background(), 2), []types.Content{{Text: "page"}}, required)
	require.NoError(t, err)
	assert.Contains(t, client.prompt, "MISSING")
}

func TestDecodePartial(t *testing.T) {
	p, err := DecodePartial(`Here you go: {"reporting_year": 2023, "action_plan_summary": "Electrify the fleet"}`)
	require.NoError(t, err)
	assert.Equal(t, 2023, *p.ReportingYear)
	assert.Equal(t, []string{types.FieldReportingYear, types.FieldActionPlanSummary}, p.Reported())

	_, err = DecodePartial("   ")
	assert.Error(t, err)
}
