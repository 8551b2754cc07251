package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// DifyAssistant talks to a Dify-compatible chat API. All failures are plain
// errors; callers decide how to degrade.
type DifyAssistant struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type difyRequest struct {
	Inputs         map[string]string `json:"inputs"`
	Query          string            `json:"query"`
	ResponseMode   string            `json:"response_mode"`
	User           string            `json:"user"`
	ConversationID string            `json:"conversation_id,omitempty"`
}

type difyResponse struct {
	Answer         string         `json:"answer"`
	Text           string         `json:"text"`
	Status         any            `json:"status"`
	ConversationID string         `json:"conversation_id"`
	Metadata       map[string]any `json:"metadata"`
}

func (d DifyAssistant) Triage(ctx context.Context, description string) (Result, error) {
	return d.call(ctx, difyRequest{
		Inputs:       map[string]string{"description": description},
		Query:        description,
		ResponseMode: "blocking",
		User:         "system",
	})
}

func (d DifyAssistant) SendMessage(ctx context.Context, query, conversationID, user string) (Result, error) {
	if user == "" {
		user = "player"
	}
	return d.call(ctx, difyRequest{
		Inputs:         map[string]string{},
		Query:          query,
		ResponseMode:   "blocking",
		User:           user,
		ConversationID: conversationID,
	})
}

func (d DifyAssistant) call(ctx context.Context, payload difyRequest) (Result, error) {
	if strings.TrimSpace(d.BaseURL) == "" {
		return Result{}, fmt.Errorf("ASSISTANT_BASE_URL is not set")
	}

	b, _ := json.Marshal(payload)
	url := strings.TrimRight(d.BaseURL, "/") + "/chat-messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(d.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+d.APIKey)
	}

	client := d.Client
	if client == nil {
		timeout := 30 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
				timeout = remaining
			}
		}
		client = &http.Client{Timeout: timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("assistant request timed out")
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Result{}, fmt.Errorf("assistant request timed out")
		}
		return Result{}, fmt.Errorf("assistant request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return Result{}, fmt.Errorf("assistant http error: %s: %v", resp.Status, errBody)
	}

	var r difyResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Result{}, err
	}
	return parseResult(r), nil
}

func parseResult(r difyResponse) Result {
	text := r.Answer
	if text == "" {
		text = r.Text
	}

	status := stringify(r.Status)
	intent := "unknown"
	urgency := UrgencyNonUrgent
	var options []string

	if r.Metadata != nil {
		if status == "" {
			status = stringify(r.Metadata["status"])
		}
		if v, ok := r.Metadata["detected_intent"].(string); ok && v != "" {
			intent = v
		}
		if v, ok := r.Metadata["urgency"].(string); ok && strings.EqualFold(v, "urgent") {
			urgency = UrgencyUrgent
		}
		if raw, ok := r.Metadata["suggested_options"].([]any); ok {
			for _, o := range raw {
				if s, ok := o.(string); ok {
					options = append(options, s)
				}
			}
		}
	}

	// Some workflows return their payload as a JSON blob inside the answer
	// text; pull status and text out of it when present.
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var embedded struct {
			Text   string `json:"text"`
			Status any    `json:"status"`
		}
		if err := json.Unmarshal([]byte(trimmed), &embedded); err == nil {
			if embedded.Text != "" {
				text = embedded.Text
			}
			if s := stringify(embedded.Status); s != "" {
				status = s
			}
		}
	}

	return Result{
		Text:             text,
		Status:           status,
		SuggestedOptions: options,
		DetectedIntent:   intent,
		Urgency:          urgency,
		ConversationID:   r.ConversationID,
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%d", int(t))
	default:
		return fmt.Sprint(t)
	}
}
