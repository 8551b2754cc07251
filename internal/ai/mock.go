package ai

import (
	"context"
	"fmt"

	"github.com/gamedesk/backend/internal/utils"
)

// MockAssistant is a deterministic stand-in used when no assistant endpoint
// is configured, and in tests.
type MockAssistant struct {
	ForceHandoff bool
}

func (m MockAssistant) Triage(ctx context.Context, description string) (Result, error) {
	h := utils.HashStringToUint64(description)

	intents := []string{"payment", "account", "gameplay", "abuse_report"}
	urgency := UrgencyNonUrgent
	if h%3 == 0 {
		urgency = UrgencyUrgent
	}

	return Result{
		Text:             "Thanks for reaching out. I am looking into your issue now.",
		SuggestedOptions: []string{"Talk to an agent", "View FAQ"},
		DetectedIntent:   intents[h%uint64(len(intents))],
		Urgency:          urgency,
	}, nil
}

func (m MockAssistant) SendMessage(ctx context.Context, query, conversationID, user string) (Result, error) {
	h := utils.HashStringToUint64(query)

	status := ""
	if m.ForceHandoff || h%5 == 0 {
		status = "TRANSFER"
	}
	if conversationID == "" {
		conversationID = fmt.Sprintf("mock-conv-%d", h%100000)
	}

	return Result{
		Text:           "I understand. Let me check that for you.",
		Status:         status,
		DetectedIntent: "unknown",
		Urgency:        UrgencyNonUrgent,
		ConversationID: conversationID,
	}, nil
}
