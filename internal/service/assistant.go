package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gem_exchange/internal/domain"
	"gem_exchange/internal/infra"
)

const assistantGreeting = "Hello! I am Gem, your AI trading assistant. How can I help you understand the market today?"

// AnalysisClient is the external generative-text collaborator.
type AnalysisClient interface {
	MarketAnalysis(ctx context.Context, pair string, price, changePct float64) (string, error)
	ChatReply(ctx context.Context, history []domain.ChatMessage, question string, mc infra.MarketContext) (string, error)
}

// Assistant manages the AI chat conversation and on-demand market
// analysis. It is fire-and-forget from the market core's perspective:
// collaborator failures degrade to a displayed message, never an error
// that propagates upward.
type Assistant struct {
	client AnalysisClient

	mu      sync.Mutex
	history []domain.ChatMessage

	// Current market context, refreshed on every tick.
	pair     string
	price    float64
	change   float64
	hasPrice bool
}

// NewAssistant creates an assistant seeded with its greeting turn.
func NewAssistant(client AnalysisClient) *Assistant {
	return &Assistant{
		client: client,
		history: []domain.ChatMessage{
			{Role: domain.ChatRoleModel, Text: assistantGreeting},
		},
	}
}

// UpdateContext records the active pair state from the latest snapshot.
func (a *Assistant) UpdateContext(snap domain.MarketSnapshot) {
	if snap.Active == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pair = snap.Active.Pair
	a.price = snap.Active.Price
	a.change = snap.Active.ChangePct
	a.hasPrice = true
}

// Ask submits a user question. The returned string is always
// displayable: on collaborator failure it is an apologetic error
// message, and the failed turn still lands in the history.
func (a *Assistant) Ask(ctx context.Context, question string) string {
	a.mu.Lock()
	prior := make([]domain.ChatMessage, len(a.history))
	copy(prior, a.history)
	mc := infra.MarketContext{
		Pair:  a.pair,
		Price: fmt.Sprintf("%.2f", a.price),
	}
	a.mu.Unlock()

	reply, err := a.client.ChatReply(ctx, prior, question, mc)
	if err != nil {
		slog.Warn("AI chat failed", slog.Any("error", err))
		reply = fmt.Sprintf("Sorry, I encountered an error: %v.", err)
	}

	a.mu.Lock()
	a.history = append(a.history,
		domain.ChatMessage{Role: domain.ChatRoleUser, Text: question},
		domain.ChatMessage{Role: domain.ChatRoleModel, Text: reply},
	)
	a.mu.Unlock()

	return reply
}

// Analyze requests a one-shot technical analysis of the active pair.
// Failures degrade to a displayed message string.
func (a *Assistant) Analyze(ctx context.Context) string {
	a.mu.Lock()
	pair, price, change, ok := a.pair, a.price, a.change, a.hasPrice
	a.mu.Unlock()

	if !ok {
		return "Market data is still warming up. Please try again in a moment."
	}

	text, err := a.client.MarketAnalysis(ctx, pair, price, change)
	if err != nil {
		slog.Warn("AI analysis failed", slog.Any("error", err))
		return fmt.Sprintf("Failed to retrieve AI analysis: %v. Please check your API key and configuration.", err)
	}
	return text
}

// History returns a copy of the conversation so far.
func (a *Assistant) History() []domain.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]domain.ChatMessage, len(a.history))
	copy(result, a.history)
	return result
}
