package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/models"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	openai "github.com/sashabaranov/go-openai"
)

// JustificationFacts is the already-decided input handed to the text
// generator. The engine decides which deltas exist and what evidence and
// code citations they carry; the generator only phrases those facts.
type JustificationFacts struct {
	DeltaType       models.DeltaType
	ItemDescription string
	CodeCitation    string
	EvidenceSummary string
	CarrierQty      string
	ExpectedQty     string
}

// JustificationGenerator phrases already-decided facts into reviewer-facing
// prose. Implementations must never add or change facts.
type JustificationGenerator interface {
	Generate(ctx context.Context, facts JustificationFacts) (string, error)
}

// TemplateJustifier is the deterministic fallback. Its output is also what
// ships when no generation backend is configured, so it has to read well
// enough on its own.
type TemplateJustifier struct{}

func (TemplateJustifier) Generate(_ context.Context, facts JustificationFacts) (string, error) {
	return RenderJustificationTemplate(facts), nil
}

func RenderJustificationTemplate(facts JustificationFacts) string {
	var b strings.Builder

	switch facts.DeltaType {
	case models.DeltaTypeMissing:
		fmt.Fprintf(&b, "The carrier estimate omits %s.", strings.ToLower(facts.ItemDescription))
	case models.DeltaTypeUnderscoped:
		fmt.Fprintf(&b, "The carrier estimate underscopes %s (carrier: %s, required: %s).",
			strings.ToLower(facts.ItemDescription), facts.CarrierQty, facts.ExpectedQty)
	case models.DeltaTypeRecommendAdd:
		fmt.Fprintf(&b, "Documented damage supports adding %s.", strings.ToLower(facts.ItemDescription))
	default:
		fmt.Fprintf(&b, "The carrier estimate misstates %s.", strings.ToLower(facts.ItemDescription))
	}

	if facts.CodeCitation != "" {
		fmt.Fprintf(&b, " Required per %s.", facts.CodeCitation)
	}
	if facts.EvidenceSummary != "" {
		fmt.Fprintf(&b, " Evidence: %s.", strings.TrimSuffix(facts.EvidenceSummary, "."))
	}
	return b.String()
}

// CachedJustifier memoizes generated prose over Redis. The key hashes every
// input that influences the output (all fact fields plus the model name), so
// a changed fact or a model swap always misses.
type CachedJustifier struct {
	Inner JustificationGenerator
	Model string
	TTL   time.Duration
}

func NewCachedJustifier(inner JustificationGenerator, model string) *CachedJustifier {
	return &CachedJustifier{Inner: inner, Model: model, TTL: 7 * 24 * time.Hour}
}

func (j *CachedJustifier) Generate(ctx context.Context, facts JustificationFacts) (string, error) {
	key := utils.BuildCacheKey("justification", "v1",
		j.Model,
		string(facts.DeltaType),
		facts.ItemDescription,
		facts.CodeCitation,
		facts.EvidenceSummary,
		facts.CarrierQty,
		facts.ExpectedQty,
	)
	return FetchOrCompute(ctx, key, j.TTL, func(ctx context.Context) (string, error) {
		return j.Inner.Generate(ctx, facts)
	})
}

// OpenAIJustifier asks the model to phrase the facts. Generation is treated
// as fallible: malformed or refused responses surface as errors and the
// caller falls back to the template, keeping the structural delta intact.
type OpenAIJustifier struct {
	Client *openai.Client
	Model  string
}

func NewOpenAIJustifier() *OpenAIJustifier {
	return &OpenAIJustifier{
		Client: config.GetOpenAIClient(),
		Model:  config.GetGenerationModel(),
	}
}

const justifierSystemPrompt = "You write one short, professional paragraph justifying an insurance supplement line item for a restoration contractor. " +
	"Use ONLY the facts given. Do not invent codes, measurements, or damage. Do not mention that you were given facts."

func (j *OpenAIJustifier) Generate(ctx context.Context, facts JustificationFacts) (string, error) {
	if j.Client == nil {
		return "", fmt.Errorf("openai client not configured")
	}

	resp, err := j.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: justifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: renderFactsPrompt(facts)},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("blank completion content")
	}
	return content, nil
}

func renderFactsPrompt(facts JustificationFacts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Delta type: %s\n", facts.DeltaType)
	fmt.Fprintf(&b, "Item: %s\n", facts.ItemDescription)
	if facts.CodeCitation != "" {
		fmt.Fprintf(&b, "Code citation: %s\n", facts.CodeCitation)
	}
	if facts.CarrierQty != "" {
		fmt.Fprintf(&b, "Carrier quantity: %s\n", facts.CarrierQty)
	}
	if facts.ExpectedQty != "" {
		fmt.Fprintf(&b, "Required quantity: %s\n", facts.ExpectedQty)
	}
	if facts.EvidenceSummary != "" {
		fmt.Fprintf(&b, "Photo evidence: %s\n", facts.EvidenceSummary)
	}
	return b.String()
}
