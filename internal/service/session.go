package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gamedesk/backend/internal/ai"
	"github.com/gamedesk/backend/internal/db"
	"github.com/gamedesk/backend/internal/models"
	"github.com/gamedesk/backend/internal/push"
)

const fallbackReply = "Thanks for your report. We are looking into it, please hold on..."

// Store is the persistence surface the routing engine needs. *db.Store
// implements it; tests substitute an in-memory fake.
type Store interface {
	GetSession(ctx context.Context, id string) (models.Session, error)
	FindOpenSessionByTicket(ctx context.Context, ticketID string) (models.Session, error)
	CreateSession(ctx context.Context, s models.Session) error
	UpdateSessionAssistant(ctx context.Context, id, intent, urgency, assistantStatus, convID string) error
	EnqueueSession(ctx context.Context, id string, score int, urgency string, queuedAt time.Time) (bool, error)
	ClaimSession(ctx context.Context, id, agentID string) (bool, error)
	CloseSession(ctx context.Context, id string) error
	ListQueuedSessions(ctx context.Context) ([]db.QueuedSession, error)
	SetQueuePositions(ctx context.Context, ids []string) error
	CountQueuedAhead(ctx context.Context, score int, queuedAt, createdAt time.Time, id string) (int, error)
	UpdateSessionScore(ctx context.Context, id string, score int) error
	GetTicket(ctx context.Context, id string) (models.Ticket, error)
	EscalateTicketAndCloseSession(ctx context.Context, ticketID, sessionID string) error
	CountOnlineAgents(ctx context.Context) (int, error)
	SetAgentOnline(ctx context.Context, agentID string, online bool) error
	ListRules(ctx context.Context, enabledOnly bool) ([]models.Rule, error)
	CreateMessage(ctx context.Context, m models.Message) error
}

// SessionService owns the session lifecycle and the waiting queue. It is
// stateless between calls; all state lives in the store, so any number of
// request workers can run it concurrently.
type SessionService struct {
	Store           Store
	Assistant       ai.Assistant
	Hub             *push.Hub
	Logger          zerolog.Logger
	BaselineScore   int
	WaitPerPosition time.Duration
}

// Create opens a session for a ticket, or returns the ticket's existing open
// session. The assistant's first-touch triage runs after the session exists;
// its failure degrades the reply, never the session.
func (s *SessionService) Create(ctx context.Context, ticketID string) (models.Session, error) {
	ticket, err := s.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return models.Session{}, err
	}

	if existing, err := s.Store.FindOpenSessionByTicket(ctx, ticketID); err == nil {
		return existing, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return models.Session{}, err
	}

	session := models.Session{
		ID:                  uuid.NewString(),
		TicketID:            ticket.ID,
		Status:              models.SessionPending,
		AllowManualTransfer: true,
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.Store.CreateSession(ctx, session); err != nil {
		return models.Session{}, err
	}

	reply := fallbackReply
	var options []string
	result, err := s.Assistant.Triage(ctx, ticket.Description)
	if err != nil {
		s.Logger.Warn().Err(err).Str("session_id", session.ID).Msg("assistant triage failed")
	} else {
		if result.Text != "" {
			reply = result.Text
		}
		options = result.SuggestedOptions
		if err := s.Store.UpdateSessionAssistant(ctx, session.ID, result.DetectedIntent, result.Urgency, result.Status, result.ConversationID); err != nil {
			s.Logger.Error().Err(err).Str("session_id", session.ID).Msg("failed to store triage result")
		}
	}

	s.appendMessage(ctx, session.ID, models.SenderAI, reply, options)

	return s.Store.GetSession(ctx, session.ID)
}

type MessageResult struct {
	PlayerMessage models.Message  `json:"player_message"`
	AIMessage     *models.Message `json:"ai_message,omitempty"`
	Transfer      *TransferResult `json:"transfer,omitempty"`
}

// HandlePlayerMessage records the player's message, lets the assistant reply,
// and enqueues the session when the assistant signals a hand-off. Assistant
// failures are absorbed; the player message always lands.
func (s *SessionService) HandlePlayerMessage(ctx context.Context, sessionID, content string) (MessageResult, error) {
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return MessageResult{}, err
	}
	if session.Status == models.SessionClosed {
		return MessageResult{}, ErrInvalidTransition
	}

	playerMsg := s.appendMessage(ctx, sessionID, models.SenderPlayer, content, nil)
	out := MessageResult{PlayerMessage: playerMsg}

	result, err := s.Assistant.SendMessage(ctx, content, session.AssistantConvID, session.TicketID)
	if err != nil {
		s.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("assistant chat failed")
		return out, nil
	}

	if err := s.Store.UpdateSessionAssistant(ctx, sessionID, result.DetectedIntent, "", result.Status, result.ConversationID); err != nil {
		s.Logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to store assistant state")
	}

	if result.Text != "" {
		aiMsg := s.appendMessage(ctx, sessionID, models.SenderAI, result.Text, result.SuggestedOptions)
		out.AIMessage = &aiMsg
	}

	if result.WantsHandoff() {
		transfer, err := s.TransferToAgent(ctx, sessionID, ai.UrgencyUrgent)
		if err != nil {
			// Duplicate hand-off signals land here; the session already
			// queued is not a failure of this message.
			if !errors.Is(err, ErrInvalidTransition) {
				return out, err
			}
			s.Logger.Debug().Str("session_id", sessionID).Msg("hand-off signal on non-pending session ignored")
		} else {
			out.Transfer = &transfer
		}
	}
	return out, nil
}

// Close ends a session. Idempotent: closing a closed session is a no-op
// success so duplicate close requests from flaky clients do not error.
func (s *SessionService) Close(ctx context.Context, sessionID string) (models.Session, error) {
	if err := s.Store.CloseSession(ctx, sessionID); err != nil {
		return models.Session{}, err
	}
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	s.publishSession(session)
	return session, nil
}

func (s *SessionService) appendMessage(ctx context.Context, sessionID string, sender models.MessageSender, content string, options []string) models.Message {
	msg := models.Message{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		Sender:           sender,
		Content:          content,
		SuggestedOptions: options,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.Store.CreateMessage(ctx, msg); err != nil {
		s.Logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to store message")
		return msg
	}
	if s.Hub != nil {
		s.Hub.Publish(push.Event{Type: push.EventMessage, SessionID: sessionID, Payload: msg})
	}
	return msg
}

func (s *SessionService) publishSession(session models.Session) {
	if s.Hub == nil {
		return
	}
	s.Hub.Publish(push.Event{Type: push.EventSessionUpdate, SessionID: session.ID, Payload: session})
}
