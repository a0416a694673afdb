// Package conversation models the per-run chat transcript.
package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// DefaultRetention is the number of messages kept per run.
const DefaultRetention = 200

// Provenance records which intelligence tier produced an agent reply.
type Provenance struct {
	Tier     string `json:"tier"`
	Degraded bool   `json:"degraded"`
}

// Message is one transcript entry.
type Message struct {
	Sender     Sender      `json:"sender"`
	Content    string      `json:"content"`
	Timestamp  string      `json:"timestamp"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// NewMessage stamps a message with the given time in RFC 3339.
func NewMessage(sender Sender, content string, at time.Time) Message {
	return Message{
		Sender:    sender,
		Content:   content,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// Conversation is an append-only transcript, oldest first.
type Conversation []Message

// Append returns the conversation with msgs added.
func (c Conversation) Append(msgs ...Message) Conversation {
	return append(c, msgs...)
}

// Tail returns a copy of the last n messages.
func (c Conversation) Tail(n int) Conversation {
	if n <= 0 {
		return Conversation{}
	}
	start := max(len(c)-n, 0)
	out := make(Conversation, len(c)-start)
	copy(out, c[start:])
	return out
}

// Trim drops the oldest messages beyond limit.
func (c Conversation) Trim(limit int) Conversation {
	if limit <= 0 || len(c) <= limit {
		return c
	}
	return c.Tail(limit)
}

// Clone returns an independent copy.
func (c Conversation) Clone() Conversation {
	return c.Tail(len(c))
}

// Transcript renders messages as "sender: content" lines.
func (c Conversation) Transcript() string {
	var b strings.Builder
	for i, m := range c {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", m.Sender, m.Content)
	}
	return b.String()
}

// Decode parses a stored transcript. A JSON null yields an empty one.
func Decode(data []byte) (Conversation, error) {
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	if c == nil {
		c = Conversation{}
	}
	return c, nil
}

// Encode renders the transcript as indented JSON.
func Encode(c Conversation) ([]byte, error) {
	if c == nil {
		c = Conversation{}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal conversation: %w", err)
	}
	return data, nil
}
