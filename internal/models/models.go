package models

import "time"

type SessionStatus string

const (
	SessionPending    SessionStatus = "PENDING"
	SessionQueued     SessionStatus = "QUEUED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionClosed     SessionStatus = "CLOSED"
)

// Claimable reports whether an agent may still take over the session.
func (s SessionStatus) Claimable() bool {
	return s == SessionPending || s == SessionQueued
}

type Session struct {
	ID                  string        `json:"id"`
	TicketID            string        `json:"ticket_id"`
	Status              SessionStatus `json:"status"`
	AgentID             *string       `json:"agent_id"`
	DetectedIntent      string        `json:"detected_intent,omitempty"`
	PlayerUrgency       string        `json:"player_urgency,omitempty"`
	AssistantConvID     string        `json:"assistant_conversation_id,omitempty"`
	AssistantStatus     string        `json:"assistant_status,omitempty"`
	PriorityScore       int           `json:"priority_score"`
	Scored              bool          `json:"-"`
	QueuedAt            *time.Time    `json:"queued_at"`
	QueuePosition       *int          `json:"queue_position"`
	StartedAt           *time.Time    `json:"started_at"`
	ClosedAt            *time.Time    `json:"closed_at"`
	AllowManualTransfer bool          `json:"allow_manual_transfer"`
	CreatedAt           time.Time     `json:"created_at"`
}

type Ticket struct {
	ID             string    `json:"id"`
	TicketNo       string    `json:"ticket_no"`
	PlayerIDOrName string    `json:"player_id_or_name"`
	GameID         string    `json:"game_id"`
	ServerID       string    `json:"server_id,omitempty"`
	Description    string    `json:"description"`
	IdentityStatus string    `json:"identity_status"`
	IssueTypeIDs   []string  `json:"issue_type_ids"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority"`
	PriorityScore  int       `json:"priority_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// RuleConditions is the tagged predicate evaluated by the scorer. The
// issue-type clause is mandatory; every other clause is an optional
// refinement applied as a pure AND when present.
type RuleConditions struct {
	IssueTypeIDs   []string `json:"issue_type_ids"`
	Keywords       []string `json:"keywords,omitempty"`
	Intent         string   `json:"intent,omitempty"`
	IdentityStatus string   `json:"identity_status,omitempty"`
	GameID         string   `json:"game_id,omitempty"`
	ServerID       string   `json:"server_id,omitempty"`
	Priority       string   `json:"priority,omitempty"`
}

type Rule struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Enabled        bool           `json:"enabled"`
	PriorityWeight int            `json:"priority_weight"`
	Conditions     RuleConditions `json:"conditions"`
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

type IssueType struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Enabled        bool       `json:"enabled"`
	PriorityWeight int        `json:"priority_weight"`
	SortOrder      int        `json:"sort_order"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

type MessageSender string

const (
	SenderPlayer MessageSender = "PLAYER"
	SenderAI     MessageSender = "AI"
	SenderAgent  MessageSender = "AGENT"
)

type Message struct {
	ID               string        `json:"id"`
	SessionID        string        `json:"session_id"`
	Sender           MessageSender `json:"sender"`
	Content          string        `json:"content"`
	SuggestedOptions []string      `json:"suggested_options,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Agent is owned by the account collaborator; the routing engine only reads
// the online flag and flips it on claim.
type Agent struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	RealName string `json:"real_name,omitempty"`
	IsOnline bool   `json:"is_online"`
}
