package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/esg-extractor/internal/extraction"
	"github.com/jonathan/esg-extractor/internal/fields"
	"github.com/jonathan/esg-extractor/internal/prompts"
	"github.com/jonathan/esg-extractor/internal/schemas"
	"github.com/jonathan/esg-extractor/internal/types"
)

// ESGExtractorOptions configures an ESGExtractor.
type ESGExtractorOptions struct {
	Tier   ModelTier
	Logger *slog.Logger
}

// ESGExtractor asks a model for ESG fields from page content. It satisfies the
// extraction loop's model-call contract.
type ESGExtractor struct {
	client   Client
	registry *fields.Registry
	tier     ModelTier
	company  string
	logger   *slog.Logger
}

// NewESGExtractor creates an extractor over client using the registry's fields.
func NewESGExtractor(client Client, registry *fields.Registry, opts ESGExtractorOptions) *ESGExtractor {
	if registry == nil {
		registry = fields.DefaultRegistry()
	}
	if opts.Tier == "" {
		opts.Tier = TierStandard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ESGExtractor{
		client:   client,
		registry: registry,
		tier:     opts.Tier,
		logger:   opts.Logger,
	}
}

// ForDocument returns a copy of the extractor that names the company in its prompts.
func (e *ESGExtractor) ForDocument(company string) *ESGExtractor {
	c := *e
	c.company = company
	c.logger = e.logger.With("doc_company", company)
	return &c
}

// BuildPrompt returns the full prompt for one pass and the page text folded into it.
// Pass 1 (or 0, outside a run) asks for the whole record. Later passes name only the
// fields still missing.
func (e *ESGExtractor) BuildPrompt(pass int, content []types.Content, missing []string) (string, error) {
	system, err := prompts.Get(prompts.ESGFile, "system")
	if err != nil {
		return "", err
	}

	company := e.company
	if company == "" {
		company = "company's"
	}

	followUp := pass > 1 && len(missing) > 0
	key := "first-pass"
	if followUp {
		key = "follow-up-pass"
	}
	instruction, err := prompts.Render(prompts.ESGFile, key, map[string]string{
		"Company": company,
		"Missing": strings.Join(missing, ", "),
	})
	if err != nil {
		return "", err
	}

	description := system + "\n\n" + instruction
	schema := ESGSchema(e.registry, description, missing)
	if followUp {
		schema = MissingSchema(e.registry, description, missing)
	}
	return BuildExtractionPrompt(schema, pageText(content)), nil
}

// ExtractFields sends one window of pages to the model and decodes its answer.
// Provider failures return *APICallError; unusable responses return *ParseError.
func (e *ESGExtractor) ExtractFields(ctx context.Context, content []types.Content, missing []string) (*types.PartialRecord, error) {
	if len(content) == 0 {
		return nil, &ParseError{Message: "no content to extract from"}
	}

	reqID := uuid.NewString()
	start := time.Now()

	pass := extraction.PassFromContext(ctx)
	log := e.logger.With("req_id", reqID, "model", e.client.GetModel(e.tier), "pass", pass)

	prompt, err := e.BuildPrompt(pass, content, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}
	parts := imageParts(content)

	log.Info("llm.extract.start", "pages", len(content), "images", len(parts), "missing", missing)

	raw, err := e.client.GenerateJSONFromParts(ctx, prompt, parts, e.tier)
	if err != nil {
		log.Warn("llm.extract.error", "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	partial, err := DecodePartial(raw)
	if err != nil {
		log.Warn("llm.extract.invalid", "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	log.Info("llm.extract.ok", "reported", partial.Reported(), "elapsed_ms", time.Since(start).Milliseconds())
	return partial, nil
}

// DecodePartial cleans, validates and decodes a raw model response.
func DecodePartial(raw string) (*types.PartialRecord, error) {
	cleaned := CleanJSONBlock(raw)
	if cleaned == "" {
		return nil, &ParseError{Message: "empty response", Raw: raw}
	}

	if err := schemas.ValidatePartial(cleaned); err != nil {
		return nil, &ParseError{Message: "response does not match the partial record schema", Raw: raw, Cause: err}
	}

	var partial types.PartialRecord
	if err := json.Unmarshal([]byte(cleaned), &partial); err != nil {
		return nil, &ParseError{Message: "failed to decode response", Raw: raw, Cause: err}
	}
	return &partial, nil
}

func pageText(content []types.Content) string {
	var sb strings.Builder
	for _, c := range content {
		if c.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("--- Page %d ---\n", c.PageIndex+1))
		sb.WriteString(c.Text)
	}
	return sb.String()
}

func imageParts(content []types.Content) []Part {
	var parts []Part
	for _, c := range content {
		p := Part{MIMEType: c.MIMEType, Data: c.Data}
		if p.IsImage() {
			parts = append(parts, p)
		}
	}
	return parts
}
