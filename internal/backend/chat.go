// ABOUTME: Conversational agent endpoints
// ABOUTME: Sends chat queries and fetches the per-phone conversation log

package backend

import (
	"context"
	"encoding/json"
	"net/http"
)

// History entry types written by the backend.
const (
	HistoryRequest           = "request"
	HistoryResponse          = "response"
	HistoryScheduledRequest  = "scheduled_request"
	HistoryScheduledResponse = "scheduled_response"
)

// HistoryEntry is one logged message. Entries of one exchange share a
// RequestID.
type HistoryEntry struct {
	RequestID json.RawMessage `json:"request_id"`
	Type      string          `json:"type"`
	Message   string          `json:"message"`
}

// RequestKey returns RequestID as a comparable key; the backend sends it as
// a number or a string.
func (h HistoryEntry) RequestKey() string {
	var s string
	if err := json.Unmarshal(h.RequestID, &s); err == nil {
		return s
	}
	return string(h.RequestID)
}

type chatRequest struct {
	Query      string `json:"query"`
	FromNumber string `json:"from_number"`
}

type chatResponse struct {
	Envelope
	Response string `json:"response"`
}

type historyResponse struct {
	Envelope
	History []HistoryEntry `json:"history"`
}

// SendMessage asks the agent of dbName a question on behalf of fromNumber
// and returns its answer.
func (c *Client) SendMessage(ctx context.Context, dbName, query, fromNumber string) (string, error) {
	var resp chatResponse
	body := chatRequest{Query: query, FromNumber: fromNumber}
	if err := c.doJSON(ctx, "send message", http.MethodPost, tenantPath("/api/chat", dbName), body, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// ConversationHistory returns the conversation log of phoneNumber, newest first.
func (c *Client) ConversationHistory(ctx context.Context, dbName, phoneNumber string) ([]HistoryEntry, error) {
	var resp historyResponse
	path := tenantPath("/api/conversation-history", dbName, phoneNumber)
	if err := c.doJSON(ctx, "conversation history", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}
