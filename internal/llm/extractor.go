// Package llm - extractor.go builds structured-extraction prompts from a field schema.
package llm

import (
	"fmt"
	"strings"

	"github.com/jonathan/esg-extractor/internal/fields"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "ESGRecord")
	Description string        // System prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint shown to the model
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
	Priority    bool   // Still missing after earlier passes
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
// Input text may be empty when the content travels as image parts.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		hint := ""
		switch {
		case field.Priority:
			hint = " (required, still missing: look for this first)"
		case field.Required:
			hint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, hint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Extract information only from the supplied pages, do not invent values.\n")
	sb.WriteString("- Use null for anything the pages do not state.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n")

	if strings.TrimSpace(inputText) != "" {
		sb.WriteString("\nInput text:\n\"\"\"\n")
		sb.WriteString(inputText)
		sb.WriteString("\n\"\"\"\n")
	}

	return sb.String()
}

// typeHints maps a field kind to the JSON shape shown to the model.
var typeHints = map[fields.Kind]string{
	fields.KindString:   `"string" | null`,
	fields.KindInteger:  `integer | null`,
	fields.KindEmission: `{"value": number | null, "unit": "string" | null}`,
	fields.KindBool:     `true | false | null`,
	fields.KindList:     `[{"target_reduction_percentage": "string", "target_year": integer, "base_year": integer | null}]`,
}

// ESGSchema builds the extraction schema from the field registry. Fields named in
// missing are flagged as priority.
func ESGSchema(registry *fields.Registry, description string, missing []string) ExtractionSchema {
	priority := make(map[string]bool, len(missing))
	for _, m := range missing {
		priority[m] = true
	}

	fs := registry.Fields()
	schema := ExtractionSchema{
		Name:        "ESGRecord",
		Description: description,
		Fields:      make([]SchemaField, 0, len(fs)),
	}
	for _, f := range fs {
		schema.Fields = append(schema.Fields, SchemaField{
			Name:        f.Name,
			Type:        typeHints[f.Kind],
			Description: f.Description,
			Required:    f.Required,
			Priority:    f.Required && priority[f.Name],
		})
	}
	return schema
}

// MissingSchema builds a schema holding only the named fields, all flagged as priority.
// Names the registry does not carry are skipped.
func MissingSchema(registry *fields.Registry, description string, missing []string) ExtractionSchema {
	schema := ExtractionSchema{
		Name:        "ESGRecord",
		Description: description,
		Fields:      make([]SchemaField, 0, len(missing)),
	}
	for _, name := range missing {
		f, ok := registry.Lookup(name)
		if !ok {
			continue
		}
		schema.Fields = append(schema.Fields, SchemaField{
			Name:        f.Name,
			Type:        typeHints[f.Kind],
			Description: f.Description,
			Required:    f.Required,
			Priority:    true,
		})
	}
	return schema
}
