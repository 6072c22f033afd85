package decision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/template"

	"github.com/alejandrodnm/roundbot/internal/domain"
	"github.com/alejandrodnm/roundbot/internal/ports"
)

// promptData is what the prompt template can reference.
type promptData struct {
	Summary string
	Token   string
	Hour    int // 1-based
	Price   float64
}

// AI renders the prompt for each snapshot and asks the external source.
type AI struct {
	source ports.DecisionSource
	tmpl   *template.Template
}

// NewAI parses the prompt template. A template with no actions gets the
// market summary appended after it.
func NewAI(source ports.DecisionSource, promptTemplate string) (*AI, error) {
	if !strings.Contains(promptTemplate, "{{") {
		promptTemplate = strings.TrimRight(promptTemplate, "\n") + "\n\n{{.Summary}}"
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("decision.NewAI: parse template: %w", err)
	}
	// Unknown fields only fail at Execute time.
	if err := tmpl.Execute(io.Discard, promptData{}); err != nil {
		return nil, fmt.Errorf("decision.NewAI: template: %w", err)
	}
	return &AI{source: source, tmpl: tmpl}, nil
}

// Prompt renders the full prompt for a snapshot.
func (a *AI) Prompt(snap domain.MarketSnapshot) (string, error) {
	var sb strings.Builder
	err := a.tmpl.Execute(&sb, promptData{
		Summary: snap.Summary(),
		Token:   snap.Token,
		Hour:    snap.Hour + 1,
		Price:   snap.Price,
	})
	if err != nil {
		return "", fmt.Errorf("decision.AI: render prompt: %w", err)
	}
	return sb.String(), nil
}

// Decide implements ports.Decider. Transport errors and replies that fail
// validation are both returned as errors so the Chain can fall back.
func (a *AI) Decide(ctx context.Context, snap domain.MarketSnapshot) (domain.TradeDecision, error) {
	prompt, err := a.Prompt(snap)
	if err != nil {
		return domain.TradeDecision{}, err
	}
	slog.Debug("decision: prompt", "hour", snap.Hour+1, "chars", len(prompt))

	reply, err := a.source.Generate(ctx, prompt)
	if err != nil {
		return domain.TradeDecision{}, fmt.Errorf("decision.AI: generate: %w", err)
	}

	d, err := domain.ParseDecision(reply)
	if err != nil {
		return domain.TradeDecision{}, fmt.Errorf("decision.AI: %w", err)
	}
	return d, nil
}
