package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gamedesk/backend/internal/ai"
	"github.com/gamedesk/backend/internal/db"
	"github.com/gamedesk/backend/internal/models"
)

// fakeStore is an in-memory Store with the same conditional-write semantics
// as the real one, so claim races and state guards behave identically.
type fakeStore struct {
	mu          sync.Mutex
	sessions    map[string]models.Session
	tickets     map[string]models.Ticket
	rules       []models.Rule
	messages    []models.Message
	online      int
	agentOnline map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:    map[string]models.Session{},
		tickets:     map[string]models.Ticket{},
		agentOnline: map[string]bool{},
	}
}

func (f *fakeStore) GetSession(_ context.Context, id string) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return models.Session{}, db.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) FindOpenSessionByTicket(_ context.Context, ticketID string) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.TicketID == ticketID && s.Status != models.SessionClosed {
			return s, nil
		}
	}
	return models.Session{}, db.ErrNotFound
}

func (f *fakeStore) CreateSession(_ context.Context, s models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) UpdateSessionAssistant(_ context.Context, id, intent, urgency, assistantStatus, convID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return db.ErrNotFound
	}
	if intent != "" {
		s.DetectedIntent = intent
	}
	if urgency != "" {
		s.PlayerUrgency = urgency
	}
	if assistantStatus != "" {
		s.AssistantStatus = assistantStatus
	}
	if convID != "" {
		s.AssistantConvID = convID
	}
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) EnqueueSession(_ context.Context, id string, score int, urgency string, queuedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return false, db.ErrNotFound
	}
	if s.Status != models.SessionPending || !s.AllowManualTransfer {
		return false, nil
	}
	s.Status = models.SessionQueued
	s.PriorityScore = score
	s.Scored = true
	if urgency != "" {
		s.PlayerUrgency = urgency
	}
	t := queuedAt
	s.QueuedAt = &t
	s.AllowManualTransfer = false
	f.sessions[id] = s
	return true, nil
}

func (f *fakeStore) ClaimSession(_ context.Context, id, agentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return false, db.ErrNotFound
	}
	if !s.Status.Claimable() || s.AgentID != nil {
		return false, nil
	}
	a := agentID
	now := time.Now().UTC()
	s.AgentID = &a
	s.Status = models.SessionInProgress
	s.StartedAt = &now
	s.QueuedAt = nil
	s.QueuePosition = nil
	f.sessions[id] = s
	return true, nil
}

func (f *fakeStore) CloseSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return db.ErrNotFound
	}
	if s.Status == models.SessionClosed {
		return nil
	}
	now := time.Now().UTC()
	s.Status = models.SessionClosed
	s.ClosedAt = &now
	s.QueuePosition = nil
	f.sessions[id] = s
	return nil
}

func queueLess(a, b models.Session) bool {
	if a.PriorityScore != b.PriorityScore {
		return a.PriorityScore > b.PriorityScore
	}
	aq, bq := timeOrZero(a.QueuedAt), timeOrZero(b.QueuedAt)
	if !aq.Equal(bq) {
		return aq.Before(bq)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (f *fakeStore) ListQueuedSessions(_ context.Context) ([]db.QueuedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var queued []models.Session
	for _, s := range f.sessions {
		if s.Status == models.SessionQueued {
			queued = append(queued, s)
		}
	}
	sort.Slice(queued, func(i, j int) bool { return queueLess(queued[i], queued[j]) })
	out := make([]db.QueuedSession, 0, len(queued))
	for _, s := range queued {
		out = append(out, db.QueuedSession{Session: s, Ticket: f.tickets[s.TicketID]})
	}
	return out, nil
}

func (f *fakeStore) SetQueuePositions(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range ids {
		s, ok := f.sessions[id]
		if !ok || s.Status != models.SessionQueued {
			continue
		}
		pos := i + 1
		s.QueuePosition = &pos
		f.sessions[id] = s
	}
	return nil
}

func (f *fakeStore) CountQueuedAhead(_ context.Context, score int, queuedAt, createdAt time.Time, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := models.Session{ID: id, PriorityScore: score, QueuedAt: &queuedAt, CreatedAt: createdAt}
	count := 0
	for _, s := range f.sessions {
		if s.Status != models.SessionQueued || s.ID == id {
			continue
		}
		if queueLess(s, ref) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpdateSessionScore(_ context.Context, id string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionQueued {
		return nil
	}
	s.PriorityScore = score
	s.Scored = true
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) GetTicket(_ context.Context, id string) (models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return models.Ticket{}, db.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) EscalateTicketAndCloseSession(_ context.Context, ticketID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[ticketID]
	if !ok {
		return db.ErrNotFound
	}
	t.Status = "WAITING"
	t.Priority = "URGENT"
	f.tickets[ticketID] = t

	s, ok := f.sessions[sessionID]
	if ok && s.Status != models.SessionClosed {
		now := time.Now().UTC()
		s.Status = models.SessionClosed
		s.ClosedAt = &now
		s.QueuePosition = nil
		f.sessions[sessionID] = s
	}
	return nil
}

func (f *fakeStore) CountOnlineAgents(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online, nil
}

func (f *fakeStore) SetAgentOnline(_ context.Context, agentID string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agentOnline[agentID] = online
	return nil
}

func (f *fakeStore) ListRules(_ context.Context, enabledOnly bool) ([]models.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Rule, 0, len(f.rules))
	for _, r := range f.rules {
		if enabledOnly && (!r.Enabled || r.DeletedAt != nil) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, m models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeStore) messagesFor(sessionID string) []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out
}

// scriptedAssistant returns canned results so tests control the hand-off
// signal exactly.
type scriptedAssistant struct {
	triage    ai.Result
	triageErr error
	reply     ai.Result
	replyErr  error
}

func (a scriptedAssistant) Triage(_ context.Context, _ string) (ai.Result, error) {
	return a.triage, a.triageErr
}

func (a scriptedAssistant) SendMessage(_ context.Context, _, _, _ string) (ai.Result, error) {
	return a.reply, a.replyErr
}
