package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gamedesk/backend/internal/models"
)

const sessionColumns = `id, ticket_id, status, agent_id, detected_intent, player_urgency,
	assistant_conv_id, assistant_status, priority_score, scored, queued_at, queue_position,
	started_at, closed_at, allow_manual_transfer, created_at`

func scanSession(row pgx.Row) (models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.ID, &s.TicketID, &s.Status, &s.AgentID, &s.DetectedIntent, &s.PlayerUrgency,
		&s.AssistantConvID, &s.AssistantStatus, &s.PriorityScore, &s.Scored, &s.QueuedAt,
		&s.QueuePosition, &s.StartedAt, &s.ClosedAt, &s.AllowManualTransfer, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	return s, err
}

func (s *Store) CreateSession(ctx context.Context, sess models.Session) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO sessions (id, ticket_id, status, allow_manual_transfer, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sess.ID, sess.TicketID, sess.Status, sess.AllowManualTransfer, sess.CreatedAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (models.Session, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// FindOpenSessionByTicket returns the ticket's non-closed session, if any.
// Session creation is deduplicated against it.
func (s *Store) FindOpenSessionByTicket(ctx context.Context, ticketID string) (models.Session, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE ticket_id = $1 AND status <> 'CLOSED'
		ORDER BY created_at DESC LIMIT 1
	`, ticketID)
	return scanSession(row)
}

func (s *Store) UpdateSessionAssistant(ctx context.Context, id, intent, urgency, assistantStatus, convID string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE sessions
		SET detected_intent = COALESCE(NULLIF($2, ''), detected_intent),
			player_urgency = COALESCE(NULLIF($3, ''), player_urgency),
			assistant_status = COALESCE(NULLIF($4, ''), assistant_status),
			assistant_conv_id = COALESCE(NULLIF($5, ''), assistant_conv_id)
		WHERE id = $1
	`, id, intent, urgency, assistantStatus, convID)
	return err
}

// EnqueueSession is a conditional write: the session enters the queue only if
// it is still PENDING and its one manual hand-off has not been spent. Zero
// rows affected means the precondition no longer holds.
func (s *Store) EnqueueSession(ctx context.Context, id string, score int, urgency string, queuedAt time.Time) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'QUEUED', priority_score = $2, scored = TRUE, player_urgency = $3,
			queued_at = $4, allow_manual_transfer = FALSE
		WHERE id = $1 AND status = 'PENDING' AND allow_manual_transfer = TRUE
	`, id, score, urgency, queuedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimSession transitions the session to IN_PROGRESS and binds the agent in
// a single compare-and-set statement. Exactly one of any number of concurrent
// callers observes a row affected; the rest lost the race.
func (s *Store) ClaimSession(ctx context.Context, id, agentID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'IN_PROGRESS', agent_id = $2, started_at = NOW(),
			queued_at = NULL, queue_position = NULL
		WHERE id = $1 AND status IN ('PENDING', 'QUEUED') AND agent_id IS NULL
	`, id, agentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CloseSession is idempotent: closing an already-closed session affects zero
// rows and is treated as success.
func (s *Store) CloseSession(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'CLOSED', closed_at = NOW(), queued_at = NULL, queue_position = NULL
		WHERE id = $1 AND status <> 'CLOSED'
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

type QueuedSession struct {
	Session models.Session
	Ticket  models.Ticket
}

// ListQueuedSessions returns the queue in comparator order: score descending,
// queued_at ascending, then created_at and id as stable tie-breaks.
func (s *Store) ListQueuedSessions(ctx context.Context) ([]QueuedSession, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+prefixedSessionColumns("s")+`,
			t.id, t.ticket_no, t.player_id_or_name, t.game_id, t.server_id, t.description,
			t.identity_status, t.issue_type_ids, t.status, t.priority, t.priority_score, t.created_at
		FROM sessions s
		JOIN tickets t ON t.id = s.ticket_id
		WHERE s.status = 'QUEUED'
		ORDER BY s.priority_score DESC, s.queued_at ASC, s.created_at ASC, s.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueuedSession
	for rows.Next() {
		var q QueuedSession
		if err := rows.Scan(
			&q.Session.ID, &q.Session.TicketID, &q.Session.Status, &q.Session.AgentID,
			&q.Session.DetectedIntent, &q.Session.PlayerUrgency, &q.Session.AssistantConvID,
			&q.Session.AssistantStatus, &q.Session.PriorityScore, &q.Session.Scored,
			&q.Session.QueuedAt, &q.Session.QueuePosition, &q.Session.StartedAt,
			&q.Session.ClosedAt, &q.Session.AllowManualTransfer, &q.Session.CreatedAt,
			&q.Ticket.ID, &q.Ticket.TicketNo, &q.Ticket.PlayerIDOrName, &q.Ticket.GameID,
			&q.Ticket.ServerID, &q.Ticket.Description, &q.Ticket.IdentityStatus,
			&q.Ticket.IssueTypeIDs, &q.Ticket.Status, &q.Ticket.Priority,
			&q.Ticket.PriorityScore, &q.Ticket.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// SetQueuePositions assigns 1-based ranks following the order of ids. Rows
// that left the queue since the caller's snapshot are skipped by the status
// guard; the next reorder heals them.
func (s *Store) SetQueuePositions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.Pool.Exec(ctx, `
		UPDATE sessions SET queue_position = v.pos
		FROM (SELECT unnest($1::text[]) AS id, generate_subscripts($1::text[], 1) AS pos) v
		WHERE sessions.id = v.id AND sessions.status = 'QUEUED'
	`, ids)
	return err
}

// CountQueuedAhead counts sessions sorting strictly ahead of the given keys
// under the queue comparator.
func (s *Store) CountQueuedAhead(ctx context.Context, score int, queuedAt, createdAt time.Time, id string) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE status = 'QUEUED' AND (
			priority_score > $1
			OR (priority_score = $1 AND queued_at < $2)
			OR (priority_score = $1 AND queued_at = $2 AND created_at < $3)
			OR (priority_score = $1 AND queued_at = $2 AND created_at = $3 AND id < $4)
		)
	`, score, queuedAt, createdAt, id).Scan(&n)
	return n, err
}

func (s *Store) UpdateSessionScore(ctx context.Context, id string, score int) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE sessions SET priority_score = $2, scored = TRUE
		WHERE id = $1 AND status = 'QUEUED'
	`, id, score)
	return err
}

func (s *Store) ListSessions(ctx context.Context, status, agentID string, limit, offset int) ([]models.Session, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ` WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		where += ` AND status = $1`
	}
	if agentID != "" {
		args = append(args, agentID)
		if status != "" {
			where += ` AND agent_id = $2`
		} else {
			where += ` AND agent_id = $1`
		}
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions` + where +
		` ORDER BY created_at DESC LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sess)
	}
	return out, total, rows.Err()
}

func (s *Store) CreateMessage(ctx context.Context, m models.Message) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO messages (id, session_id, sender, content, suggested_options, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.SessionID, m.Sender, m.Content, m.SuggestedOptions, m.CreatedAt)
	return err
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, session_id, sender, content, suggested_options, created_at
		FROM messages WHERE session_id = $1 ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &m.SuggestedOptions, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CountOnlineAgents(ctx context.Context) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM agents WHERE is_online = TRUE AND deleted_at IS NULL
	`).Scan(&n)
	return n, err
}

func (s *Store) SetAgentOnline(ctx context.Context, agentID string, online bool) error {
	_, err := s.Pool.Exec(ctx, `UPDATE agents SET is_online = $2 WHERE id = $1`, agentID, online)
	return err
}

func prefixedSessionColumns(alias string) string {
	return alias + `.id, ` + alias + `.ticket_id, ` + alias + `.status, ` + alias + `.agent_id, ` +
		alias + `.detected_intent, ` + alias + `.player_urgency, ` + alias + `.assistant_conv_id, ` +
		alias + `.assistant_status, ` + alias + `.priority_score, ` + alias + `.scored, ` +
		alias + `.queued_at, ` + alias + `.queue_position, ` + alias + `.started_at, ` +
		alias + `.closed_at, ` + alias + `.allow_manual_transfer, ` + alias + `.created_at`
}
