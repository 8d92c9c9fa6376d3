// Package extract turns homepage text into a fixed-shape company analysis
// using a generative language model.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-extractor/internal/model"
)

// Generator produces a free-text completion for a system and user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

const systemPrompt = "Extract company info as JSON only."

const userPrompt = `Extract these details from %s's website and return them as a JSON object with exactly these keys:

{
  "cheapest_plan": "lowest listed price or plan, e.g. \"$10/month (Starter)\"",
  "free_trial": "Yes/No",
  "enterprise_plan": "Yes/No",
  "api_availability": "Yes/No",
  "market_type": "B2B/B2C/Both"
}

Use "unknown" for any value that cannot be determined from the content.
Return only the JSON object, with no explanation or markdown.

Content:
%s`

// BuildPrompt renders the extraction prompt for a company and its page text.
func BuildPrompt(company, text string) string {
	return fmt.Sprintf(userPrompt, company, text)
}

// Extractor asks a Generator for the five-field analysis and parses the reply.
type Extractor struct {
	gen Generator
}

// New creates an Extractor.
func New(gen Generator) *Extractor {
	return &Extractor{gen: gen}
}

// Extract returns the analysis for company based on text. It makes exactly
// one model call. On any failure it returns the all-unknown analysis along
// with an extraction_error, so callers always have a complete value.
func (e *Extractor) Extract(ctx context.Context, company, text string) (model.Analysis, error) {
	log := zap.L().With(zap.String("company", company), zap.String("provider", e.gen.Name()))

	if strings.TrimSpace(text) == "" {
		return model.UnknownAnalysis(), model.NewStageError(model.KindExtraction,
			eris.New("extract: no source text"))
	}

	raw, err := e.gen.Generate(ctx, systemPrompt, BuildPrompt(company, text))
	if err != nil {
		return model.UnknownAnalysis(), model.NewStageError(model.KindExtraction,
			eris.Wrapf(err, "extract: %s generate", e.gen.Name()))
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		log.Debug("extract: unparseable response", zap.String("raw", truncate(raw, 500)))
		return model.UnknownAnalysis(), model.NewStageError(model.KindExtraction, err)
	}

	return analysis, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
