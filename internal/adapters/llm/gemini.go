// Package llm implements ports.DecisionSource against the Gemini
// generateContent REST API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/alejandrodnm/roundbot/internal/adapters/httpclient"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-1.5-flash"

	apiKeyHeader = "x-goog-api-key"
)

// ErrEmptyResponse is returned when the model produces no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Config holds the Gemini connection and generation parameters.
type Config struct {
	BaseURL           string
	Model             string
	APIKey            string
	Temperature       float64
	TopP              float64
	TopK              int
	MaxOutputTokens   int
	RequestsPerMinute float64
}

// Gemini asks the model for a {action, percentage} object.
type Gemini struct {
	http     *httpclient.Client
	endpoint string
	gen      generationConfig
}

// NewGemini creates a client for cfg. Options are passed to the HTTP client.
func NewGemini(cfg Config, opts ...httpclient.Option) *Gemini {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	// La key va en header: los errores de transporte incluyen la URL completa.
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, url.PathEscape(model))
	opts = append([]httpclient.Option{httpclient.WithHeader(apiKeyHeader, cfg.APIKey)}, opts...)

	return &Gemini{
		http:     httpclient.New(cfg.RequestsPerMinute, 1, opts...),
		endpoint: endpoint,
		gen: generationConfig{
			Temperature:      cfg.Temperature,
			TopP:             cfg.TopP,
			TopK:             cfg.TopK,
			MaxOutputTokens:  cfg.MaxOutputTokens,
			ResponseMimeType: "application/json",
			ResponseSchema:   decisionSchema,
		},
	}
}

// Generate sends prompt and returns the text of the first candidate.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: prompt}},
		}},
		GenerationConfig: g.gen,
	}

	var resp generateResponse
	if err := g.http.PostJSON(ctx, g.endpoint, req, &resp); err != nil {
		return "", fmt.Errorf("llm.Generate: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("llm.Generate: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("llm.Generate: %w", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("llm.Generate: finish=%s: %w", resp.Candidates[0].FinishReason, ErrEmptyResponse)
	}
	return text, nil
}

// --- wire types ---

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	TopP             float64 `json:"topP,omitempty"`
	TopK             int     `json:"topK,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
}

type schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

var decisionSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"action": {
			Type:        "STRING",
			Description: "buy or sell",
			Enum:        []string{"buy", "sell"},
		},
		"percentage": {
			Type:        "NUMBER",
			Description: "percentage of the relevant balance to trade, 0 to 100",
		},
	},
	Required: []string{"action", "percentage"},
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}
