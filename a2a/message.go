package a2a

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
	RoleTool   Role = "tool"
)

// PartType identifies the content type of a message part.
type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeData PartType = "data"
)

// Part is one piece of message content. Only text parts carry routing
// semantics; data parts are passed through untouched.
type Part struct {
	Type PartType       `json:"type"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// ResponseMeta is the typed side-channel attached to a reply message.
// It replaces ad hoc metadata keys for the signals the task manager and
// the sticky-routing check read back.
type ResponseMeta struct {
	// SessionID is the session the responding agent actually used.
	SessionID string `json:"session_id,omitempty"`
	// RespondingAgent is the human-readable name of the agent that
	// produced this reply ("Orchestrator" for direct answers).
	RespondingAgent string `json:"responding_agent,omitempty"`
	// ResetSession signals that the sticky agent binding for this
	// session has been released.
	ResetSession bool `json:"reset_session,omitempty"`
}

// Message is one conversational turn exchanged between agents.
type Message struct {
	Role      Role              `json:"role"`
	Parts     []Part            `json:"parts"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Meta      *ResponseMeta     `json:"meta,omitempty"`
}

// NewTextMessage creates a message with a single text part.
func NewTextMessage(role Role, text string) *Message {
	return &Message{
		Role:      role,
		Parts:     []Part{{Type: PartTypeText, Text: text}},
		Timestamp: time.Now().UTC(),
	}
}

// Text returns the text of the first text part, or "" if none exists.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			return p.Text
		}
	}
	return ""
}

// WithMeta attaches the typed response side-channel.
func (m *Message) WithMeta(meta *ResponseMeta) *Message {
	m.Meta = meta
	return m
}

// SetMetadata sets a metadata key-value pair.
func (m *Message) SetMetadata(key, value string) *Message {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
	return m
}

// Validate checks that the message has all required fields.
func (m *Message) Validate() error {
	if m == nil {
		return ErrInvalidMessage
	}
	if m.Role == "" {
		return ErrMessageMissingRole
	}
	if len(m.Parts) == 0 {
		return ErrMessageMissingParts
	}
	return nil
}
