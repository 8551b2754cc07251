package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gamedesk/backend/internal/models"
)

func (s *Store) CreateTicket(ctx context.Context, t models.Ticket) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO tickets (id, ticket_no, player_id_or_name, game_id, server_id, description,
			identity_status, issue_type_ids, status, priority, priority_score, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, t.ID, t.TicketNo, t.PlayerIDOrName, t.GameID, t.ServerID, t.Description,
		t.IdentityStatus, t.IssueTypeIDs, t.Status, t.Priority, t.PriorityScore, t.CreatedAt)
	return err
}

func (s *Store) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, ticket_no, player_id_or_name, game_id, server_id, description,
			identity_status, issue_type_ids, status, priority, priority_score, created_at
		FROM tickets WHERE id = $1
	`, id)

	var t models.Ticket
	err := row.Scan(&t.ID, &t.TicketNo, &t.PlayerIDOrName, &t.GameID, &t.ServerID,
		&t.Description, &t.IdentityStatus, &t.IssueTypeIDs, &t.Status, &t.Priority,
		&t.PriorityScore, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Ticket{}, ErrNotFound
	}
	return t, err
}

// EscalateTicketAndCloseSession flags the ticket for the unassigned backlog
// and closes its session in one transaction. Used when a hand-off arrives with
// no agents online, instead of queueing into a queue nobody watches; the two
// writes must not be observable half-applied.
func (s *Store) EscalateTicketAndCloseSession(ctx context.Context, ticketID, sessionID string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE tickets SET status = 'WAITING', priority = 'URGENT' WHERE id = $1
		`, ticketID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `
			UPDATE sessions
			SET status = 'CLOSED', closed_at = NOW(), queued_at = NULL, queue_position = NULL
			WHERE id = $1 AND status <> 'CLOSED'
		`, sessionID)
		return err
	})
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
