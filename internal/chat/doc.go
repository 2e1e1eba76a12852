// Package chat models the console conversation with the backend agent.
//
// FromHistory rebuilds a transcript from the backend conversation log, which
// arrives newest first with request and response rows correlated by
// request_id. Conversation appends the user's messages and the agent replies
// as they arrive, turning failures into inline error messages. Agent replies
// are Markdown; RenderMarkdown converts them for the web console.
package chat
