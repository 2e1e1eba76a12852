// ABOUTME: chat and history commands for talking to the reporting agent
// ABOUTME: chat with no message starts a line-by-line session until EOF or "exit"

package main

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/posible/posible-admin/internal/chat"
)

func (a *app) chatCmd() *cobra.Command {
	return protected(&cobra.Command{
		Use:   "chat [MESSAGE...]",
		Short: "Ask the agent a question",
		Example: `  posible-admin chat "How many orders today?"
  posible-admin chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conv := chat.NewConversation(a.api, a.tenant, a.logger)

			if len(args) > 0 {
				a.send(cmd, conv, strings.Join(args, " "))
				return nil
			}

			a.out.Info("Type a message, or \"exit\" to quit.")
			for {
				line, err := a.readLine(cmd, "> ")
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				line = strings.TrimSpace(line)
				if line == "exit" || line == "quit" {
					return nil
				}
				a.send(cmd, conv, line)
			}
		},
	})
}

// send posts text and prints the reply the conversation appended.
func (a *app) send(cmd *cobra.Command, conv *chat.Conversation, text string) {
	if !conv.Send(cmd.Context(), text) {
		return
	}
	msgs := conv.Messages()
	last := msgs[len(msgs)-1]
	if last.Error {
		a.out.Error("%s", last.Content)
		return
	}
	a.out.Print("%s", last.Content)
}

func (a *app) historyCmd() *cobra.Command {
	return protected(&cobra.Command{
		Use:   "history",
		Short: "Show the conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conv := chat.NewConversation(a.api, a.tenant, a.logger)
			if err := conv.Load(cmd.Context()); err != nil {
				return describe(err, "Failed to load conversation history")
			}

			msgs := conv.Messages()
			if len(msgs) == 0 {
				a.out.Info("No conversation history")
				return nil
			}
			for _, m := range msgs {
				if m.Role == chat.RoleUser {
					a.out.Print("%s %s", a.out.Dim("you:"), m.Content)
				} else {
					a.out.Print("%s %s", a.out.Dim("agent:"), m.Content)
				}
			}
			return nil
		},
	})
}
