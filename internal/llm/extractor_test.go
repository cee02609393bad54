package llm

import (
	"testing"

	"github.com/jonathan/esg-extractor/internal/fields"
	"github.com/jonathan/esg-extractor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExtractionPrompt(t *testing.T) {
	schema := ExtractionSchema{
		Name:        "Test",
		Description: "Extract emissions.",
		Fields: []SchemaField{
			{Name: "scope_1", Type: "number", Required: true, Priority: true, Description: "Direct emissions"},
			{Name: "scope_2_market", Type: "number", Required: true},
			{Name: "notes"},
		},
	}

	prompt := BuildExtractionPrompt(schema, "Scope 1: 10 t")

	assert.Contains(t, prompt, "Extract emissions.")
	assert.Contains(t, prompt, `"scope_1": number (required, still missing: look for this first) // Direct emissions,`)
	assert.Contains(t, prompt, `"scope_2_market": number (required),`)
	assert.Contains(t, prompt, `"notes": string`+"\n}")
	assert.Contains(t, prompt, "Input text:\n\"\"\"\nScope 1: 10 t\n\"\"\"")
}

func TestBuildExtractionPrompt_NoInputText(t *testing.T) {
	prompt := BuildExtractionPrompt(ExtractionSchema{Description: "x"}, "  ")
	assert.NotContains(t, prompt, "Input text")
}

func TestESGSchema(t *testing.T) {
	reg := fields.DefaultRegistry()
	schema := ESGSchema(reg, "desc", []string{types.FieldScope1, types.FieldReportingYear})

	require.Len(t, schema.Fields, len(reg.Fields()))
	byName := make(map[string]SchemaField)
	for _, f := range schema.Fields {
		byName[f.Name] = f
		assert.NotEmpty(t, f.Type, f.Name)
	}

	assert.True(t, byName[types.FieldScope1].Priority)
	// Optional fields are never flagged as priority.
	assert.False(t, byName[types.FieldReportingYear].Priority)
	assert.False(t, byName[types.FieldScope2Market].Priority)
	assert.True(t, byName[types.FieldScope2Market].Required)
}

func TestMissingSchema(t *testing.T) {
	reg := fields.DefaultRegistry()
	schema := MissingSchema(reg, "desc", []string{types.FieldTargets, "unknown_field", types.FieldScope1})

	require.Len(t, schema.Fields, 2)
	assert.Equal(t, types.FieldTargets, schema.Fields[0].Name)
	assert.Equal(t, types.FieldScope1, schema.Fields[1].Name)
	for _, f := range schema.Fields {
		assert.True(t, f.Priority, f.Name)
		assert.NotEmpty(t, f.Type, f.Name)
	}
	assert.Equal(t, "desc", schema.Description)
}
