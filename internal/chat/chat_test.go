// ABOUTME: Tests for transcript reconstruction, conversation sends, and markdown
// ABOUTME: Uses a stub sender to control replies and failures

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/tenant"
)

func entry(id, typ, msg string) backend.HistoryEntry {
	return backend.HistoryEntry{RequestID: json.RawMessage(id), Type: typ, Message: msg}
}

func TestFromHistory(t *testing.T) {
	// newest first, as the backend returns it
	history := []backend.HistoryEntry{
		entry(`3`, backend.HistoryScheduledResponse, "Sales were $900"),
		entry(`3`, backend.HistoryScheduledRequest, "Daily sales"),
		entry(`2`, backend.HistoryResponse, "You have 4 users"),
		entry(`"a7"`, backend.HistoryResponse, "Hello!"),
		entry(`2`, backend.HistoryRequest, "How many users?"),
		entry(`"a7"`, backend.HistoryRequest, "hi"),
	}

	got := FromHistory(history)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAgent, Content: "Hello!"},
		{Role: RoleUser, Content: "How many users?"},
		{Role: RoleAgent, Content: "You have 4 users"},
		{Role: RoleUser, Content: "Daily sales"},
		{Role: RoleAgent, Content: "Sales were $900"},
	}, got)
}

func TestFromHistory_KeepsLogOrderOverNumericIDs(t *testing.T) {
	// newest first; the exchange with the higher id happened earlier
	got := FromHistory([]backend.HistoryEntry{
		entry(`5`, backend.HistoryResponse, "second answer"),
		entry(`5`, backend.HistoryRequest, "second"),
		entry(`12`, backend.HistoryResponse, "first answer"),
		entry(`12`, backend.HistoryRequest, "first"),
	})
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAgent, Content: "first answer"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAgent, Content: "second answer"},
	}, got)
}

func TestFromHistory_PartialAndEmpty(t *testing.T) {
	assert.Empty(t, FromHistory(nil))

	got := FromHistory([]backend.HistoryEntry{
		entry(`1`, backend.HistoryRequest, "unanswered"),
		entry(`1`, "unknown", "ignored"),
	})
	assert.Equal(t, []Message{{Role: RoleUser, Content: "unanswered"}}, got)
}

func TestFromHistory_RequestPreferredOverScheduled(t *testing.T) {
	got := FromHistory([]backend.HistoryEntry{
		entry(`1`, backend.HistoryScheduledRequest, "scheduled"),
		entry(`1`, backend.HistoryRequest, "typed"),
	})
	assert.Equal(t, []Message{{Role: RoleUser, Content: "typed"}}, got)
}

type stubSender struct {
	reply   string
	err     error
	history []backend.HistoryEntry
	histErr error
	block   chan struct{}
	mu      sync.Mutex
	sent    []string
}

func (s *stubSender) SendMessage(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	s.sent = append(s.sent, query)
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.reply, s.err
}

func (s *stubSender) ConversationHistory(ctx context.Context) ([]backend.HistoryEntry, error) {
	return s.history, s.histErr
}

type stubTenant struct{ err error }

func (s stubTenant) DBName() (string, error) { return "tenant1", s.err }

func TestSend(t *testing.T) {
	c := NewConversation(&stubSender{reply: "**42**"}, stubTenant{}, nil)

	assert.True(t, c.Send(context.Background(), "answer?"))
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "answer?"},
		{Role: RoleAgent, Content: "**42**"},
	}, c.Messages())
	assert.False(t, c.Sending())
}

func TestSend_IgnoresBlank(t *testing.T) {
	s := &stubSender{}
	c := NewConversation(s, nil, nil)

	assert.False(t, c.Send(context.Background(), "   "))
	assert.Empty(t, c.Messages())
	assert.Empty(t, s.sent)
}

func TestSend_FailureBecomesErrorMessage(t *testing.T) {
	c := NewConversation(&stubSender{err: &backend.APIError{Op: "send message", Message: "agent down"}}, nil, nil)

	c.Send(context.Background(), "hello")
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleAgent, Content: ErrorReply, Error: true}, msgs[1])
}

func TestSend_NoTenant(t *testing.T) {
	s := &stubSender{}
	c := NewConversation(s, stubTenant{err: tenant.ErrNoDBName}, nil)

	assert.True(t, c.Send(context.Background(), "hello"))
	assert.Equal(t, []Message{{Role: RoleAgent, Content: NoTenantReply, Error: true}}, c.Messages())
	assert.Empty(t, s.sent)
}

func TestSend_SenderReportsNoTenant(t *testing.T) {
	c := NewConversation(&stubSender{err: tenant.ErrNoTwilioNumber}, nil, nil)

	c.Send(context.Background(), "hello")
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, NoTenantReply, msgs[1].Content)
}

func TestSend_IgnoredWhileInFlight(t *testing.T) {
	s := &stubSender{reply: "done", block: make(chan struct{})}
	c := NewConversation(s, nil, nil)

	done := make(chan bool)
	go func() { done <- c.Send(context.Background(), "first") }()

	require.Eventually(t, c.Sending, time.Second, 5*time.Millisecond)
	assert.False(t, c.Send(context.Background(), "second"))

	close(s.block)
	assert.True(t, <-done)
	assert.Equal(t, []string{"first"}, s.sent)
	assert.Len(t, c.Messages(), 2)
}

func TestLoad(t *testing.T) {
	s := &stubSender{history: []backend.HistoryEntry{
		entry(`1`, backend.HistoryResponse, "pong"),
		entry(`1`, backend.HistoryRequest, "ping"),
	}}
	c := NewConversation(s, stubTenant{}, nil)

	require.NoError(t, c.Load(context.Background()))
	assert.Len(t, c.Messages(), 2)

	s.histErr = errors.New("boom")
	assert.Error(t, c.Load(context.Background()))
	assert.Len(t, c.Messages(), 2, "failed reload keeps the transcript")
}

func TestLoad_NoTenant(t *testing.T) {
	c := NewConversation(&stubSender{}, stubTenant{err: tenant.ErrNoDBName}, nil)
	assert.ErrorIs(t, c.Load(context.Background()), tenant.ErrNoTenant)
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("**Total:** $1,200\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, string(html), "<strong>Total:</strong>")
	assert.Contains(t, string(html), "<table>")

	html, err = RenderMarkdown("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(html), "<script>"))
}
