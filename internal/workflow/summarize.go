package workflow

import (
	"context"
	"fmt"
	"strings"

	"server/internal/domain"
	"server/internal/providers/genai"
)

// noSummaryPlaceholder is returned verbatim when the provider yields no
// usable candidate text.
const noSummaryPlaceholder = "No summary generated"

// SummaryResult is a summarization answer. Raw holds the provider's verbatim
// response for audit storage; it is written to blob storage by the stage and
// deliberately excluded from the checkpoint payload.
type SummaryResult struct {
	Summary      string `json:"summary"`
	ModelVersion string `json:"modelVersion"`
	FinishReason string `json:"finishReason"`
	Raw          []byte `json:"-"`
}

// Summarizer produces a summary for a prompt. The pipeline treats it as an
// opaque remote capability.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (*SummaryResult, error)
}

// GeminiSummarizer adapts the Gemini client to the Summarizer capability.
type GeminiSummarizer struct {
	client *genai.Client
}

func NewGeminiSummarizer(client *genai.Client) *GeminiSummarizer {
	return &GeminiSummarizer{client: client}
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, prompt string) (*SummaryResult, error) {
	res, err := s.client.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &SummaryResult{
		Summary:      res.Text,
		ModelVersion: res.ModelVersion,
		FinishReason: res.FinishReason,
		Raw:          res.Raw,
	}, nil
}

var _ Summarizer = (*GeminiSummarizer)(nil)

// summarizeStage calls the language model with the canonical prompt, stores
// the raw provider response as a side artifact, and returns the extracted
// summary. It runs without retry: re-billing the provider automatically on
// failure is deliberately avoided, failures surface to the run.
func (o *Orchestrator) summarizeStage(ctx context.Context, sub *domain.Submission, video videoInformation) (SummaryResult, error) {
	prompt := fmt.Sprintf("Summarize the following video caption for %q by %s:\n\n%s", video.Title, video.Author, video.Captions)

	result, err := o.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return SummaryResult{}, err
	}

	if len(result.Raw) > 0 {
		key := fmt.Sprintf("submissions/%s/llm_response.json", sub.ID)
		if _, err := o.blobs.Put(ctx, key, result.Raw, "application/json"); err != nil {
			return SummaryResult{}, fmt.Errorf("store llm response: %w", err)
		}
	}

	if strings.TrimSpace(result.Summary) == "" {
		result.Summary = noSummaryPlaceholder
	}
	return *result, nil
}
