// internal/models/conversation.go
package models

import "strings"

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type Message struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// RecentTurns keeps at most n non-empty messages, oldest first, ending on a user message.
func RecentTurns(messages []Message, n int) []Message {
	end := len(messages)
	for end > 0 && (messages[end-1].Sender != SenderUser || strings.TrimSpace(messages[end-1].Text) == "") {
		end--
	}

	out := make([]Message, 0, n)
	for i := end - 1; i >= 0 && len(out) < n; i-- {
		if strings.TrimSpace(messages[i].Text) == "" {
			continue
		}
		out = append(out, messages[i])
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// LastUserMessage returns the most recent user-authored text.
func LastUserMessage(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Sender == SenderUser {
			if text := strings.TrimSpace(messages[i].Text); text != "" {
				return text, true
			}
		}
	}
	return "", false
}
