package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/clients/openai"
	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

const (
	DecisionReinforce = "reinforce"
	DecisionCreate    = "create"
)

// PatternCandidate is an ACTIVE pattern numerically close enough to the
// trigger to be worth arbitrating over. Similarity is a coarse filter only;
// the oracle owns the relevance call.
type PatternCandidate struct {
	Pattern    *types.Pattern
	Similarity float64
}

type DecisionInput struct {
	// Raw event text, not the interpretation: the interpretation may already
	// lean toward the user's stated goals, so the literal event is the
	// ground truth for arbitration.
	EventText          string
	EventOccurredAt    time.Time
	EventCategory      string
	InterpretationText string
	Candidates         []PatternCandidate
	Evidence           []ScoredInterpretation
	SameDayEvents      []*types.UserEvent
	RecentEvents       []*types.UserEvent
	CategoryEvents     []*types.UserEvent
}

type Decision struct {
	Action      string
	PatternID   uuid.UUID
	Description string
	Reasoning   string
}

// DecisionOracle adjudicates whether a new event reinforces an existing
// behavioral pattern or establishes a new one. Implementations may fail in
// arbitrary ways (empty output, malformed JSON, upstream errors); callers
// absorb those failures and fall back, never propagate them.
type DecisionOracle interface {
	Decide(ctx context.Context, in DecisionInput) (*Decision, error)
}

type patternOracle struct {
	log *logger.Logger
	ai  openai.Client
}

func NewPatternOracle(log *logger.Logger, ai openai.Client) DecisionOracle {
	return &patternOracle{log: log.With("service", "PatternOracle"), ai: ai}
}

const oracleSystemPrompt = `You arbitrate behavioral memory for a personal journaling assistant.

Given a new life event, decide whether it is new evidence for one of the candidate recurring patterns, or the seed of a different pattern.

Rules:
- Embedding similarity got the candidates in front of you; it does not make them relevant. Two entries can embed closely while belonging to unrelated behavioral domains. Judge semantic relevance yourself.
- Choose "reinforce" only when the event is genuinely another instance of a candidate's behavior. Return that candidate's pattern_id and restate the pattern as a complete, standalone markdown description that incorporates the new evidence.
- Otherwise choose "create" and write a complete, standalone markdown description of the emerging pattern grounded in the event.
- Always fill description. Never leave it empty.`

var oracleDecisionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"action": map[string]any{
			"type": "string",
			"enum": []string{DecisionReinforce, DecisionCreate},
		},
		"pattern_id": map[string]any{
			"type":        "string",
			"description": "Required when action is reinforce; the chosen candidate's id.",
		},
		"description": map[string]any{
			"type":        "string",
			"description": "Complete standalone markdown description of the pattern.",
		},
		"reasoning": map[string]any{
			"type": "string",
		},
	},
	"required":             []string{"action", "pattern_id", "description", "reasoning"},
	"additionalProperties": false,
}

func (o *patternOracle) Decide(ctx context.Context, in DecisionInput) (*Decision, error) {
	userContext := buildOracleContext(in)
	raw, err := o.ai.GenerateJSON(ctx, oracleSystemPrompt, userContext, "pattern_decision", oracleDecisionSchema)
	if err != nil {
		return nil, fmt.Errorf("oracle call failed: %w", err)
	}
	return parseDecision(raw)
}

func parseDecision(raw map[string]any) (*Decision, error) {
	if raw == nil {
		return nil, fmt.Errorf("oracle returned no content")
	}
	action := strings.TrimSpace(strings.ToLower(stringField(raw, "action")))
	description := strings.TrimSpace(stringField(raw, "description"))
	reasoning := strings.TrimSpace(stringField(raw, "reasoning"))

	switch action {
	case DecisionCreate:
		if description == "" {
			return nil, fmt.Errorf("oracle create decision missing description")
		}
		return &Decision{Action: DecisionCreate, Description: description, Reasoning: reasoning}, nil
	case DecisionReinforce:
		if description == "" {
			return nil, fmt.Errorf("oracle reinforce decision missing description")
		}
		id, err := uuid.Parse(strings.TrimSpace(stringField(raw, "pattern_id")))
		if err != nil || id == uuid.Nil {
			return nil, fmt.Errorf("oracle reinforce decision has invalid pattern_id")
		}
		return &Decision{Action: DecisionReinforce, PatternID: id, Description: description, Reasoning: reasoning}, nil
	default:
		return nil, fmt.Errorf("oracle returned unknown action %q", action)
	}
}

func stringField(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func buildOracleContext(in DecisionInput) string {
	var b strings.Builder

	b.WriteString("## New event\n")
	fmt.Fprintf(&b, "Occurred: %s\n", in.EventOccurredAt.Format(time.RFC3339))
	if in.EventCategory != "" {
		fmt.Fprintf(&b, "Category: %s\n", in.EventCategory)
	}
	fmt.Fprintf(&b, "Text: %s\n\n", strings.TrimSpace(in.EventText))

	if strings.TrimSpace(in.InterpretationText) != "" {
		b.WriteString("## Interpretation\n")
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(in.InterpretationText))
	}

	b.WriteString("## Candidate patterns\n")
	if len(in.Candidates) == 0 {
		b.WriteString("(none above the similarity floor)\n\n")
	} else {
		for _, c := range in.Candidates {
			fmt.Fprintf(&b, "- id=%s similarity=%.3f reinforced=%dx\n  %s\n",
				c.Pattern.ID, c.Similarity, c.Pattern.ReinforcementCount, strings.TrimSpace(c.Pattern.Description))
		}
		b.WriteString("\n")
	}

	if len(in.Evidence) > 0 {
		b.WriteString("## Evidence from past interpretations\n")
		for _, e := range in.Evidence {
			marker := ""
			if e.FromPatternID != nil {
				marker = fmt.Sprintf(" (supports pattern %s)", e.FromPatternID)
			}
			fmt.Fprintf(&b, "- [%s]%s %s\n", e.CreatedAt.Format("2006-01-02"), marker, strings.TrimSpace(e.Text))
		}
		b.WriteString("\n")
	}

	writeEvents := func(title string, events []*types.UserEvent) {
		if len(events) == 0 {
			return
		}
		b.WriteString("## " + title + "\n")
		for _, ev := range events {
			fmt.Fprintf(&b, "- [%s] %s\n", ev.OccurredAt.Format("2006-01-02 15:04"), strings.TrimSpace(ev.Content))
		}
		b.WriteString("\n")
	}
	writeEvents("Same-day events", in.SameDayEvents)
	writeEvents("Preceding week", in.RecentEvents)
	writeEvents("Same-category history", in.CategoryEvents)

	return b.String()
}
