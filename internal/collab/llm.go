package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"craftline/internal/domain"
	"craftline/internal/pricing"
)

// LLMConfig configures the language-model-backed collaborator set. APIKey
// and BaseURL fall back to the OPENAI_* environment variables when empty.
type LLMConfig struct {
	Model       string
	Temperature float64
	APIKey      string
	BaseURL     string
}

// LLM answers every stage through a chat model. Each stage is a single
// prompt; the analyzer and quoter expect JSON back, the drafter plain text.
type LLM struct {
	llm  llms.Model
	temp float64
}

func NewLLM(cfg LLMConfig) (*LLM, error) {
	var opts []openai.Option
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}
	return &LLM{llm: llm, temp: cfg.Temperature}, nil
}

// NewLLMSet returns a collaborator set where the three generative stages go
// through the model. Availability stays on the deterministic oracle; it is a
// calendar lookup, not a generation task.
func NewLLMSet(cfg LLMConfig) (Set, error) {
	l, err := NewLLM(cfg)
	if err != nil {
		return Set{}, err
	}
	return Set{Analyzer: l, Quoter: l, Oracle: Mock{}, Drafter: l}, nil
}

const extractionPrompt = `You are an expert assistant for a custom central vacuum system company.
Your task is to analyze customer requests and extract key details into a structured JSON format.
Identify the primary item requested (e.g., 'power_unit', 'hose', 'attachment_set', 'part', 'service'),
its specific material/model (e.g., 'PP650', '50ft_Retractable', 'HEPA_Filter', 'New_System_Installation'),
any relevant dimensions or quantities, and customer contact info (name, address, if available).

Be precise and only include information explicitly mentioned or clearly inferable.
If a detail is not clear or not applicable, omit the key.
Output only the JSON.

Customer Request: %s`

func (l *LLM) AnalyzeRequest(ctx context.Context, customerRequest string) (domain.Payload, error) {
	if strings.TrimSpace(customerRequest) == "" {
		return nil, &CollaboratorError{Stage: StageAnalyze, Err: errors.New("empty customer request")}
	}
	out, err := l.generate(ctx, fmt.Sprintf(extractionPrompt, customerRequest))
	if err != nil {
		return nil, &CollaboratorError{Stage: StageAnalyze, Err: err}
	}
	details, err := parseJSONPayload(out)
	if err != nil {
		return nil, &CollaboratorError{Stage: StageAnalyze, Err: err}
	}
	return details, nil
}

const quotingPrompt = `You are an expert quoting assistant for a custom central vacuum system company.
Generate an itemized quote in JSON format based on the customer's extracted details
and the provided pricing information.

Pricing Data:
%s

Instructions:
1. For each item, service, or part in the extracted details, find the matching material in the pricing data.
2. Calculate line_total from unit_cost and quantity. Flat-fee services cost their unit_cost once.
3. If an item cannot be found in the pricing data, set its line_total to "TBD" and note "Price not found in database.".
4. Calculate subtotal, shipping (use Shipping_Standard if applicable, otherwise 0), and total_estimated_cost.
5. Output only JSON with keys: quote_items, subtotal, shipping, total_estimated_cost, notes.

Extracted Customer Details:
%s`

func (l *LLM) GenerateQuote(ctx context.Context, details domain.Payload, catalog []domain.PricingEntry) (domain.Payload, error) {
	encoded, err := json.Marshal(details)
	if err != nil {
		return nil, &CollaboratorError{Stage: StageQuote, Err: err}
	}
	out, err := l.generate(ctx, fmt.Sprintf(quotingPrompt, pricing.Context(catalog), string(encoded)))
	if err != nil {
		return nil, &CollaboratorError{Stage: StageQuote, Err: err}
	}
	quote, err := parseJSONPayload(out)
	if err != nil {
		return nil, &CollaboratorError{Stage: StageQuote, Err: err}
	}
	return quote, nil
}

const emailPrompt = `You are a professional and friendly sales assistant for CustomCraft.
Draft a personalized email to the customer based on their initial request,
the approved quote, and the available service slots.

Customer Request:
%s

Extracted Details:
%s

Approved Quote:
%s

Availability Information:
%s

Instructions:
1. Greet the customer by name if available.
2. Present the estimated quote items and total_estimated_cost clearly.
3. If availability contains slots, suggest them as preliminary times requiring confirmation.
4. Invite the customer to reply or call to discuss or schedule a site visit.
5. Close professionally from "The CustomCraft Team".
6. Output only the email text.`

func (l *LLM) DraftEmail(ctx context.Context, customerRequest string, details, quote, availability domain.Payload) (string, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return "", &CollaboratorError{Stage: StageDraftEmail, Err: err}
	}
	quoteJSON, err := json.Marshal(quote)
	if err != nil {
		return "", &CollaboratorError{Stage: StageDraftEmail, Err: err}
	}
	availJSON, err := json.Marshal(availability)
	if err != nil {
		return "", &CollaboratorError{Stage: StageDraftEmail, Err: err}
	}
	out, err := l.generate(ctx, fmt.Sprintf(emailPrompt, customerRequest, detailsJSON, quoteJSON, availJSON))
	if err != nil {
		return "", &CollaboratorError{Stage: StageDraftEmail, Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return "", &CollaboratorError{Stage: StageDraftEmail, Err: errors.New("empty model output")}
	}
	return strings.TrimSpace(out), nil
}

func (l *LLM) generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l.llm, prompt, llms.WithTemperature(l.temp))
}

// parseJSONPayload tolerates models that wrap their JSON in a markdown fence.
func parseJSONPayload(out string) (domain.Payload, error) {
	out = strings.TrimSpace(out)
	if strings.HasPrefix(out, "```") {
		out = strings.TrimPrefix(out, "```json")
		out = strings.TrimPrefix(out, "```")
		if i := strings.LastIndex(out, "```"); i >= 0 {
			out = out[:i]
		}
		out = strings.TrimSpace(out)
	}
	if out == "" {
		return nil, errors.New("empty model output")
	}
	var p domain.Payload
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	return p, nil
}
