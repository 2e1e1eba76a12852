// ABOUTME: In-memory conversation with the agent for one console session
// ABOUTME: Ignores blank and overlapping sends and turns failures into inline messages

package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/tenant"
)

const (
	// ErrorReply replaces the agent reply when a send fails.
	ErrorReply = "Sorry, I encountered an error. Please try again."
	// NoTenantReply is shown when the session has no tenant database.
	NoTenantReply = "Database name not available. Please log in again."
)

// Sender delivers a message to the agent. *admin.API satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, query string) (string, error)
	ConversationHistory(ctx context.Context) ([]backend.HistoryEntry, error)
}

// TenantChecker reports whether a tenant database is available.
// *tenant.Context satisfies it.
type TenantChecker interface {
	DBName() (string, error)
}

// Conversation is safe for concurrent use.
type Conversation struct {
	sender Sender
	tenant TenantChecker
	logger *slog.Logger

	mu       sync.Mutex
	messages []Message
	sending  bool
}

// NewConversation returns an empty conversation. tc may be nil.
func NewConversation(sender Sender, tc TenantChecker, logger *slog.Logger) *Conversation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{sender: sender, tenant: tc, logger: logger.With("component", "chat")}
}

// Load replaces the transcript with the backend history. On failure the
// transcript is left as it was.
func (c *Conversation) Load(ctx context.Context) error {
	if c.tenant != nil {
		if _, err := c.tenant.DBName(); err != nil {
			return err
		}
	}
	entries, err := c.sender.ConversationHistory(ctx)
	if err != nil {
		c.logger.Warn("failed to load conversation history", "error", err)
		return err
	}
	msgs := FromHistory(entries)

	c.mu.Lock()
	c.messages = msgs
	c.mu.Unlock()
	return nil
}

// Send posts text to the agent and appends the exchange. It returns false
// without doing anything when text is blank or another send is in flight.
func (c *Conversation) Send(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return false
	}
	if c.tenant != nil {
		if _, err := c.tenant.DBName(); err != nil {
			c.messages = append(c.messages, Message{Role: RoleAgent, Content: NoTenantReply, Error: true})
			c.mu.Unlock()
			return true
		}
	}
	c.sending = true
	c.messages = append(c.messages, Message{Role: RoleUser, Content: text})
	c.mu.Unlock()

	reply, err := c.sender.SendMessage(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = false
	switch {
	case errors.Is(err, tenant.ErrNoTenant):
		c.messages = append(c.messages, Message{Role: RoleAgent, Content: NoTenantReply, Error: true})
	case err != nil:
		c.logger.Warn("failed to send message", "error", err)
		c.messages = append(c.messages, Message{Role: RoleAgent, Content: ErrorReply, Error: true})
	default:
		c.messages = append(c.messages, Message{Role: RoleAgent, Content: reply})
	}
	return true
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Sending reports whether a send is in flight.
func (c *Conversation) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}
