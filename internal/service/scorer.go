package service

import (
	"strings"

	"github.com/gamedesk/backend/internal/models"
)

// ScoreSession computes the queue-ranking score: the sum of weights of all
// enabled rules matching the session's ticket. Pure; no clamp. Scores are
// relative ordering keys, not percentages.
func ScoreSession(t models.Ticket, s models.Session, rules []models.Rule) int {
	total := 0
	for _, r := range rules {
		if !r.Enabled || r.DeletedAt != nil {
			continue
		}
		if MatchRule(r.Conditions, t, s) {
			total += r.PriorityWeight
		}
	}
	return total
}

// MatchRule evaluates the tagged rule predicate. The issue-type clause is
// mandatory: a rule listing no issue types, or none carried by the ticket,
// never matches. Every other clause is optional and ANDed when present.
func MatchRule(c models.RuleConditions, t models.Ticket, s models.Session) bool {
	if len(c.IssueTypeIDs) == 0 {
		return false
	}
	if !anyOverlap(c.IssueTypeIDs, t.IssueTypeIDs) {
		return false
	}

	if len(c.Keywords) > 0 && !anyKeyword(c.Keywords, t.Description) {
		return false
	}
	if c.Intent != "" && s.DetectedIntent != c.Intent {
		return false
	}
	if c.IdentityStatus != "" && t.IdentityStatus != c.IdentityStatus {
		return false
	}
	if c.GameID != "" && t.GameID != c.GameID {
		return false
	}
	if c.ServerID != "" && t.ServerID != c.ServerID {
		return false
	}
	if c.Priority != "" && t.Priority != c.Priority {
		return false
	}
	return true
}

func anyOverlap(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

func anyKeyword(keywords []string, description string) bool {
	desc := strings.ToLower(description)
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(desc, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
