package service

import (
	"testing"
	"time"

	"github.com/gamedesk/backend/internal/models"
)

func paymentTicket(identity string) models.Ticket {
	return models.Ticket{
		ID:             "t1",
		GameID:         "game-1",
		ServerID:       "eu-1",
		Description:    "I paid twice and got charged for the same bundle",
		IdentityStatus: identity,
		IssueTypeIDs:   []string{"it-payment"},
		Priority:       "HIGH",
	}
}

func TestScoreSessionSumsMatchingRules(t *testing.T) {
	rules := []models.Rule{
		{ID: "r1", Name: "payment issues", Enabled: true, PriorityWeight: 80,
			Conditions: models.RuleConditions{IssueTypeIDs: []string{"it-payment"}}},
		{ID: "r2", Name: "verified players", Enabled: true, PriorityWeight: 20,
			Conditions: models.RuleConditions{IssueTypeIDs: []string{"it-payment"}, IdentityStatus: "VERIFIED"}},
	}

	got := ScoreSession(paymentTicket("VERIFIED"), models.Session{}, rules)
	if got != 100 {
		t.Fatalf("expected score 100 for verified payment ticket, got %d", got)
	}

	got = ScoreSession(paymentTicket("UNVERIFIED"), models.Session{}, rules)
	if got != 80 {
		t.Fatalf("expected score 80 for unverified payment ticket, got %d", got)
	}
}

func TestScoreSessionSkipsDisabledAndDeleted(t *testing.T) {
	deleted := time.Now()
	rules := []models.Rule{
		{ID: "r1", Enabled: false, PriorityWeight: 80,
			Conditions: models.RuleConditions{IssueTypeIDs: []string{"it-payment"}}},
		{ID: "r2", Enabled: true, PriorityWeight: 40, DeletedAt: &deleted,
			Conditions: models.RuleConditions{IssueTypeIDs: []string{"it-payment"}}},
	}
	if got := ScoreSession(paymentTicket("VERIFIED"), models.Session{}, rules); got != 0 {
		t.Fatalf("expected disabled and deleted rules to be ignored, got %d", got)
	}
}

func TestMatchRuleIssueTypeClauseIsMandatory(t *testing.T) {
	ticket := paymentTicket("VERIFIED")

	if MatchRule(models.RuleConditions{}, ticket, models.Session{}) {
		t.Fatalf("rule with no issue types must never match")
	}
	if MatchRule(models.RuleConditions{IssueTypeIDs: []string{"it-account"}}, ticket, models.Session{}) {
		t.Fatalf("rule must not match a ticket without the listed issue types")
	}
	if !MatchRule(models.RuleConditions{IssueTypeIDs: []string{"it-account", "it-payment"}}, ticket, models.Session{}) {
		t.Fatalf("any overlap with the ticket's issue types should match")
	}
}

func TestMatchRuleOptionalClauses(t *testing.T) {
	ticket := paymentTicket("VERIFIED")
	session := models.Session{DetectedIntent: "payment"}
	base := models.RuleConditions{IssueTypeIDs: []string{"it-payment"}}

	kw := base
	kw.Keywords = []string{"CHARGED"}
	if !MatchRule(kw, ticket, session) {
		t.Fatalf("keyword matching should be case-insensitive")
	}
	kw.Keywords = []string{"refund"}
	if MatchRule(kw, ticket, session) {
		t.Fatalf("rule with unmatched keywords must not match")
	}

	intent := base
	intent.Intent = "payment"
	if !MatchRule(intent, ticket, session) {
		t.Fatalf("intent clause should match the session's detected intent")
	}
	intent.Intent = "abuse_report"
	if MatchRule(intent, ticket, session) {
		t.Fatalf("intent clause should reject a different detected intent")
	}

	scoped := base
	scoped.GameID = "game-1"
	scoped.ServerID = "eu-1"
	scoped.Priority = "HIGH"
	if !MatchRule(scoped, ticket, session) {
		t.Fatalf("all present clauses matching should match")
	}
	scoped.ServerID = "us-1"
	if MatchRule(scoped, ticket, session) {
		t.Fatalf("one failing clause must fail the whole rule")
	}
}
