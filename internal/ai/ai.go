package ai

import (
	"context"
	"strings"
)

// Result is what the automated assistant contributes to routing: a reply for
// the player plus the detected intent, an urgency hint, and a workflow status
// that may signal a hand-off to a human.
type Result struct {
	Text             string   `json:"text"`
	Status           string   `json:"status,omitempty"`
	SuggestedOptions []string `json:"suggested_options,omitempty"`
	DetectedIntent   string   `json:"detected_intent"`
	Urgency          string   `json:"urgency"`
	ConversationID   string   `json:"conversation_id,omitempty"`
}

// WantsHandoff reports whether the assistant asked for the session to be
// transferred to a human agent.
func (r Result) WantsHandoff() bool {
	switch strings.ToUpper(strings.TrimSpace(r.Status)) {
	case "5", "TRANSFER", "HANDOFF", "AGENT":
		return true
	}
	return false
}

type Assistant interface {
	// Triage runs the first-touch analysis of a new ticket description.
	Triage(ctx context.Context, description string) (Result, error)
	// SendMessage continues the conversation; conversationID may be empty on
	// the first turn.
	SendMessage(ctx context.Context, query, conversationID, user string) (Result, error)
}

const (
	UrgencyUrgent    = "URGENT"
	UrgencyNonUrgent = "NON_URGENT"
)
