package service

import (
	"context"
	"time"

	"github.com/gamedesk/backend/internal/models"
	"github.com/gamedesk/backend/internal/push"
)

type TransferResult struct {
	Queued            bool   `json:"queued"`
	QueuePosition     int    `json:"queue_position,omitempty"`
	EstimatedWaitMins int    `json:"estimated_wait_minutes,omitempty"`
	Message           string `json:"message,omitempty"`
	TicketNo          string `json:"ticket_no,omitempty"`
}

const noAgentsMessage = "No agents are available right now. Your issue has been escalated as an urgent ticket and will be handled with priority."

// TransferToAgent escalates a PENDING session into the human queue. Agent
// availability is queried live at hand-off time; with nobody online the
// session closes and the ticket goes to the urgent backlog instead of
// waiting in a queue nobody watches.
func (s *SessionService) TransferToAgent(ctx context.Context, sessionID, urgency string) (TransferResult, error) {
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return TransferResult{}, err
	}

	ticket, err := s.Store.GetTicket(ctx, session.TicketID)
	if err != nil {
		return TransferResult{}, err
	}

	online, err := s.Store.CountOnlineAgents(ctx)
	if err != nil {
		return TransferResult{}, err
	}
	if online == 0 {
		if err := s.Store.EscalateTicketAndCloseSession(ctx, session.TicketID, sessionID); err != nil {
			return TransferResult{}, err
		}
		closed, err := s.Store.GetSession(ctx, sessionID)
		if err != nil {
			return TransferResult{}, err
		}
		s.publishSession(closed)
		s.Logger.Info().Str("session_id", closed.ID).Str("ticket_no", ticket.TicketNo).
			Msg("no agents online, ticket escalated to backlog")
		return TransferResult{Queued: false, Message: noAgentsMessage, TicketNo: ticket.TicketNo}, nil
	}

	rules, err := s.Store.ListRules(ctx, true)
	if err != nil {
		return TransferResult{}, err
	}
	score := ScoreSession(ticket, session, rules)
	if score == 0 && !session.Scored {
		// First-touch sessions without a matching rule still need a
		// non-degenerate rank.
		score = s.BaselineScore
	}

	ok, err := s.Store.EnqueueSession(ctx, sessionID, score, urgency, time.Now().UTC())
	if err != nil {
		return TransferResult{}, err
	}
	if !ok {
		return TransferResult{}, ErrInvalidTransition
	}

	if queued, err := s.Store.GetSession(ctx, sessionID); err == nil {
		s.publishSession(queued)
	}

	if err := s.ReorderQueue(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("queue reorder after enqueue failed")
	}

	position, err := s.QueuePosition(ctx, sessionID)
	if err != nil {
		s.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("queue position lookup failed")
		position = 0
	}

	return TransferResult{
		Queued:            true,
		QueuePosition:     position,
		EstimatedWaitMins: position * int(s.WaitPerPosition.Minutes()),
	}, nil
}

// ReorderQueue recomputes every queued session's 1-based rank under the
// comparator (score desc, queued_at asc, creation order as tie-break).
// Positions are advisory: a concurrent mutation can leave them briefly stale
// and the next reorder heals them.
func (s *SessionService) ReorderQueue(ctx context.Context) error {
	queued, err := s.Store.ListQueuedSessions(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(queued))
	for _, q := range queued {
		ids = append(ids, q.Session.ID)
	}
	if err := s.Store.SetQueuePositions(ctx, ids); err != nil {
		return err
	}

	if s.Hub != nil {
		for i, q := range queued {
			s.Hub.Publish(push.Event{
				Type:      push.EventQueueUpdate,
				SessionID: q.Session.ID,
				Payload:   map[string]any{"queue_position": i + 1, "priority_score": q.Session.PriorityScore},
			})
		}
	}
	return nil
}

// QueuePosition derives the session's rank without touching stored
// positions: the count of sessions sorting strictly ahead, plus one.
// Returns 0 for sessions not in the queue.
func (s *SessionService) QueuePosition(ctx context.Context, sessionID string) (int, error) {
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if session.Status != models.SessionQueued || session.QueuedAt == nil {
		return 0, nil
	}
	ahead, err := s.Store.CountQueuedAhead(ctx, session.PriorityScore, *session.QueuedAt, session.CreatedAt, session.ID)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// Claim races the agent against everyone else trying to take the session.
// The store applies a single conditional write, so exactly one caller wins;
// losers on a still-live session get claimed=false, not an error. Claiming a
// closed session is a state violation, not a race loss.
func (s *SessionService) Claim(ctx context.Context, sessionID, agentID string) (models.Session, bool, error) {
	claimed, err := s.Store.ClaimSession(ctx, sessionID, agentID)
	if err != nil {
		return models.Session{}, false, err
	}

	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return models.Session{}, false, err
	}

	if !claimed {
		if session.Status == models.SessionClosed {
			return session, false, ErrInvalidTransition
		}
		s.Logger.Debug().Str("session_id", sessionID).Str("agent_id", agentID).
			Str("status", string(session.Status)).Msg("claim lost")
		return session, false, nil
	}

	if err := s.Store.SetAgentOnline(ctx, agentID, true); err != nil {
		s.Logger.Warn().Err(err).Str("agent_id", agentID).Msg("failed to mark agent online")
	}

	if err := s.ReorderQueue(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("queue reorder after claim failed")
	}

	s.publishSession(session)
	return session, true, nil
}

// RecalculateQueue rescores every queued session against the current rule
// set and reorders. Idempotent and safe to call at any time; rule changes
// take effect on ranking only through this pass or a new enqueue.
func (s *SessionService) RecalculateQueue(ctx context.Context) (int, error) {
	queued, err := s.Store.ListQueuedSessions(ctx)
	if err != nil {
		return 0, err
	}
	rules, err := s.Store.ListRules(ctx, true)
	if err != nil {
		return 0, err
	}

	rescored := 0
	for _, q := range queued {
		score := ScoreSession(q.Ticket, q.Session, rules)
		if score == q.Session.PriorityScore {
			continue
		}
		if err := s.Store.UpdateSessionScore(ctx, q.Session.ID, score); err != nil {
			return rescored, err
		}
		rescored++
	}

	if err := s.ReorderQueue(ctx); err != nil {
		return rescored, err
	}
	return rescored, nil
}
