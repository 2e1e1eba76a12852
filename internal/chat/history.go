// ABOUTME: Rebuilds a chat transcript from the backend conversation log
// ABOUTME: Reverses to oldest first and groups request/response rows by request_id

package chat

import (
	"github.com/posible/posible-admin/internal/backend"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is one transcript entry. Error marks an inline failure notice.
type Message struct {
	Role    Role
	Content string
	Error   bool
}

type exchange struct {
	types map[string]string
}

// FromHistory converts backend history, newest first, into a transcript in
// chronological order. Rows sharing a request_id form one exchange; the
// exchanges keep the order in which their first row appears. Within an
// exchange the user message precedes the agent message. A later row of the
// same type replaces an earlier one.
func FromHistory(entries []backend.HistoryEntry) []Message {
	var (
		order  []string
		groups = make(map[string]*exchange)
	)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		key := e.RequestKey()
		g, ok := groups[key]
		if !ok {
			g = &exchange{types: make(map[string]string)}
			groups[key] = g
			order = append(order, key)
		}
		g.types[e.Type] = e.Message
	}

	msgs := make([]Message, 0, 2*len(order))
	for _, key := range order {
		g := groups[key]
		if text := first(g.types[backend.HistoryRequest], g.types[backend.HistoryScheduledRequest]); text != "" {
			msgs = append(msgs, Message{Role: RoleUser, Content: text})
		}
		if text := first(g.types[backend.HistoryResponse], g.types[backend.HistoryScheduledResponse]); text != "" {
			msgs = append(msgs, Message{Role: RoleAgent, Content: text})
		}
	}
	return msgs
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
