package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/llm"
	"github.com/myfevent/agentd/internal/prompt"
)

// eventKeywords mark a message as in scope for event planning.
var eventKeywords = []string{
	"event", "organize", "organise", "organizer",
	"create event", "new event",
	"task", "epic", "work item",
	"department", "team",
	"member", "members",
	"head of department", "hod", "hooc", "organizing committee",
	"calendar", "schedule",
	"risk", "risks",
	"budget", "expense", "cost",
	"milestone", "milestones",
	"venue", "location",
	"date", "deadline", "timeline",
	"myfevent", "myf event",
}

// offTopicKeywords mark common unrelated chatter; they only reject when no
// event keyword is present.
var offTopicKeywords = []string{
	"1+1", "2+2", "calculate", "math",
	"hdpe", "plastic", "polyethylene",
	"tell me a story", "tell a story", "joke",
	"history of", "geography",
	"homework", "study for",
	"news", "headlines",
	"weather",
	"what is ai", "blockchain", "crypto", "bitcoin",
}

// ScopeGate decides whether a message belongs to the event-planning domain.
// Keyword heuristics answer most messages; ambiguous ones fall through to a
// single-word model classification. The gate fails open so a classifier
// outage never blocks legitimate requests.
type ScopeGate struct {
	model  llm.Client
	logger *zap.Logger
}

// NewScopeGate creates a scope gate.
func NewScopeGate(model llm.Client, logger *zap.Logger) *ScopeGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeGate{model: model, logger: logger}
}

// InScope reports whether the message should reach the agent. Blank
// messages are out of scope.
func (g *ScopeGate) InScope(ctx context.Context, message string) bool {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)

	hasEventKeyword := containsAny(lower, eventKeywords)
	if containsAny(lower, offTopicKeywords) && !hasEventKeyword {
		return false
	}
	if hasEventKeyword {
		return true
	}

	return g.classify(ctx, trimmed)
}

func (g *ScopeGate) classify(ctx context.Context, message string) bool {
	msg, err := g.model.Chat(ctx, []llm.Message{
		llm.SystemMessage(prompt.ScopeClassifierSystem),
		llm.UserMessage(prompt.ScopeClassifierPrompt(message)),
	}, nil)
	if err != nil {
		g.logger.Warn("scope classification failed, allowing message", zap.Error(err))
		return true
	}
	return strings.ToUpper(strings.TrimSpace(msg.Content)) == "YES"
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
