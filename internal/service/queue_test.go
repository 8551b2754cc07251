package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamedesk/backend/internal/ai"
	"github.com/gamedesk/backend/internal/models"
	"github.com/gamedesk/backend/internal/push"
)

func newTestService(store *fakeStore, assistant ai.Assistant) *SessionService {
	if assistant == nil {
		assistant = scriptedAssistant{}
	}
	return &SessionService{
		Store:           store,
		Assistant:       assistant,
		Hub:             push.NewHub(),
		Logger:          zerolog.Nop(),
		BaselineScore:   50,
		WaitPerPosition: 5 * time.Minute,
	}
}

func seedPendingSession(store *fakeStore, n int, issueType string) (models.Session, models.Ticket) {
	ticket := models.Ticket{
		ID:           fmt.Sprintf("t%d", n),
		TicketNo:     fmt.Sprintf("T-%03d", n),
		Description:  "something broke",
		IssueTypeIDs: []string{issueType},
		Status:       "OPEN",
		CreatedAt:    time.Date(2026, 8, 1, 10, 0, n, 0, time.UTC),
	}
	session := models.Session{
		ID:                  fmt.Sprintf("s%d", n),
		TicketID:            ticket.ID,
		Status:              models.SessionPending,
		AllowManualTransfer: true,
		CreatedAt:           ticket.CreatedAt,
	}
	store.tickets[ticket.ID] = ticket
	store.sessions[session.ID] = session
	return session, ticket
}

func TestTransferOrdersByScoreThenArrival(t *testing.T) {
	store := newFakeStore()
	store.online = 1
	store.rules = []models.Rule{
		{ID: "r-low", Enabled: true, PriorityWeight: 50,
			Conditions: models.RuleConditions{IssueTypeIDs: []string{"it-general"}}},
		{ID: "r-high", Enabled: true, PriorityWeight: 80,
			Conditions: models.RuleConditions{IssueTypeIDs: []string{"it-payment"}}},
	}
	svc := newTestService(store, nil)

	seedPendingSession(store, 1, "it-general")
	seedPendingSession(store, 2, "it-payment")
	seedPendingSession(store, 3, "it-general")

	ctx := context.Background()
	for _, id := range []string{"s1", "s2", "s3"} {
		res, err := svc.TransferToAgent(ctx, id, "NON_URGENT")
		if err != nil {
			t.Fatalf("transfer %s: %v", id, err)
		}
		if !res.Queued {
			t.Fatalf("transfer %s: expected queued", id)
		}
	}

	queued, err := store.ListQueuedSessions(ctx)
	if err != nil {
		t.Fatalf("list queued: %v", err)
	}
	gotOrder := []string{queued[0].Session.ID, queued[1].Session.ID, queued[2].Session.ID}
	wantOrder := []string{"s2", "s1", "s3"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("expected queue order %v, got %v", wantOrder, gotOrder)
		}
	}

	wantPositions := map[string]int{"s2": 1, "s1": 2, "s3": 3}
	for id, want := range wantPositions {
		pos, err := svc.QueuePosition(ctx, id)
		if err != nil {
			t.Fatalf("position %s: %v", id, err)
		}
		if pos != want {
			t.Fatalf("expected %s at position %d, got %d", id, want, pos)
		}
		stored := store.sessions[id]
		if stored.QueuePosition == nil || *stored.QueuePosition != want {
			t.Fatalf("expected stored position %d for %s, got %v", want, id, stored.QueuePosition)
		}
	}
}

func TestTransferAppliesBaselineToUnscoredSessions(t *testing.T) {
	store := newFakeStore()
	store.online = 1
	svc := newTestService(store, nil)
	seedPendingSession(store, 1, "it-unmatched")

	res, err := svc.TransferToAgent(context.Background(), "s1", "NON_URGENT")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !res.Queued || res.QueuePosition != 1 {
		t.Fatalf("expected queued at position 1, got %+v", res)
	}
	if res.EstimatedWaitMins != 5 {
		t.Fatalf("expected 5 minute estimate for position 1, got %d", res.EstimatedWaitMins)
	}
	if got := store.sessions["s1"].PriorityScore; got != 50 {
		t.Fatalf("expected baseline score 50, got %d", got)
	}
}

func TestTransferWithNoAgentsEscalatesAndCloses(t *testing.T) {
	store := newFakeStore()
	store.online = 0
	svc := newTestService(store, nil)
	_, ticket := seedPendingSession(store, 1, "it-general")

	res, err := svc.TransferToAgent(context.Background(), "s1", "URGENT")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.Queued {
		t.Fatalf("expected no queueing with zero agents online")
	}
	if res.TicketNo != ticket.TicketNo {
		t.Fatalf("expected ticket no %s in result, got %s", ticket.TicketNo, res.TicketNo)
	}
	if res.Message == "" {
		t.Fatalf("expected an explanation message for the player")
	}

	if got := store.sessions["s1"].Status; got != models.SessionClosed {
		t.Fatalf("expected session closed, got %s", got)
	}
	escalated := store.tickets[ticket.ID]
	if escalated.Status != "WAITING" || escalated.Priority != "URGENT" {
		t.Fatalf("expected ticket escalated to WAITING/URGENT, got %s/%s", escalated.Status, escalated.Priority)
	}
}

func TestTransferRejectsNonPendingSession(t *testing.T) {
	store := newFakeStore()
	store.online = 1
	svc := newTestService(store, nil)
	seedPendingSession(store, 1, "it-general")

	ctx := context.Background()
	if _, err := svc.TransferToAgent(ctx, "s1", "NON_URGENT"); err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	if store.sessions["s1"].AllowManualTransfer {
		t.Fatalf("expected the manual hand-off to be spent by enqueue")
	}
	_, err := svc.TransferToAgent(ctx, "s1", "NON_URGENT")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second transfer, got %v", err)
	}
}

func TestClaimHasExactlyOneWinner(t *testing.T) {
	store := newFakeStore()
	store.online = 1
	svc := newTestService(store, nil)
	seedPendingSession(store, 1, "it-general")
	if _, err := svc.TransferToAgent(context.Background(), "s1", "NON_URGENT"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	const racers = 16
	var wg sync.WaitGroup
	winners := make(chan string, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			_, claimed, err := svc.Claim(context.Background(), "s1", agent)
			if err != nil {
				t.Errorf("claim by %s: %v", agent, err)
				return
			}
			if claimed {
				winners <- agent
			}
		}(fmt.Sprintf("agent-%d", i))
	}
	wg.Wait()
	close(winners)

	var won []string
	for agent := range winners {
		won = append(won, agent)
	}
	if len(won) != 1 {
		t.Fatalf("expected exactly one winner, got %d: %v", len(won), won)
	}

	session := store.sessions["s1"]
	if session.Status != models.SessionInProgress {
		t.Fatalf("expected IN_PROGRESS after claim, got %s", session.Status)
	}
	if session.AgentID == nil || *session.AgentID != won[0] {
		t.Fatalf("expected winning agent %s on session, got %v", won[0], session.AgentID)
	}
	if session.QueuedAt != nil || session.QueuePosition != nil {
		t.Fatalf("expected queue fields cleared on claim, got queued_at=%v position=%v",
			session.QueuedAt, session.QueuePosition)
	}
	if !store.agentOnline[won[0]] {
		t.Fatalf("expected winning agent marked online")
	}
}

func TestClaimLostIsNotAnError(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)
	session, _ := seedPendingSession(store, 1, "it-general")
	other := "agent-0"
	session.Status = models.SessionInProgress
	session.AgentID = &other
	store.sessions[session.ID] = session

	got, claimed, err := svc.Claim(context.Background(), session.ID, "agent-1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed {
		t.Fatalf("expected claim on an already-claimed session to lose")
	}
	if got.AgentID == nil || *got.AgentID != other {
		t.Fatalf("expected current session state back, got %+v", got)
	}
}

func TestClaimOnClosedSessionIsInvalid(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)
	session, _ := seedPendingSession(store, 1, "it-general")
	session.Status = models.SessionClosed
	store.sessions[session.ID] = session

	_, claimed, err := svc.Claim(context.Background(), session.ID, "agent-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on closed session, got %v", err)
	}
	if claimed {
		t.Fatalf("expected no claim on a closed session")
	}
}

func TestQueuePositionZeroWhenNotQueued(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)
	seedPendingSession(store, 1, "it-general")

	pos, err := svc.QueuePosition(context.Background(), "s1")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos != 0 {
		t.Fatalf("expected 0 for a pending session, got %d", pos)
	}
}

func TestRecalculateQueueRescoresAndReorders(t *testing.T) {
	store := newFakeStore()
	store.online = 1
	store.rules = []models.Rule{
		{ID: "r-general", Enabled: true, PriorityWeight: 60,
			Conditions: models.RuleConditions{IssueTypeIDs: []string{"it-general"}}},
		{ID: "r-payment", Enabled: true, PriorityWeight: 40,
			Conditions: models.RuleConditions{IssueTypeIDs: []string{"it-payment"}}},
	}
	svc := newTestService(store, nil)
	seedPendingSession(store, 1, "it-general")
	seedPendingSession(store, 2, "it-payment")

	ctx := context.Background()
	for _, id := range []string{"s1", "s2"} {
		if _, err := svc.TransferToAgent(ctx, id, "NON_URGENT"); err != nil {
			t.Fatalf("transfer %s: %v", id, err)
		}
	}

	// Flip the weights: payment now outranks general.
	store.mu.Lock()
	store.rules[0].PriorityWeight = 40
	store.rules[1].PriorityWeight = 90
	store.mu.Unlock()

	rescored, err := svc.RecalculateQueue(ctx)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if rescored != 2 {
		t.Fatalf("expected 2 sessions rescored, got %d", rescored)
	}

	queued, _ := store.ListQueuedSessions(ctx)
	if queued[0].Session.ID != "s2" || queued[1].Session.ID != "s1" {
		t.Fatalf("expected s2 ahead after rule change, got %s then %s",
			queued[0].Session.ID, queued[1].Session.ID)
	}

	again, err := svc.RecalculateQueue(ctx)
	if err != nil {
		t.Fatalf("second recalculate: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected idempotent recalculate to rescore nothing, got %d", again)
	}
}
