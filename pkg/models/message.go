// Package models contains the wire and domain types shared across the
// dispatcher, analyzer, executor, and agents.
package models

import "time"

// MessageType classifies an inbound message.
type MessageType string

const (
	MessageTypeText          MessageType = "text"
	MessageTypeImage         MessageType = "image"
	MessageTypeSystem        MessageType = "system"
	MessageTypeAgentResponse MessageType = "agent_response"
)

// IsValid checks if the message type is valid
func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeSystem, MessageTypeAgentResponse:
		return true
	default:
		return false
	}
}

// Priority is the urgency attached to a message or task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Message is one inbound user message bound to a conversation.
// It is built at the request boundary and treated as immutable for the
// duration of the turn that processes it.
type Message struct {
	Content        string         `json:"content"`
	SenderID       string         `json:"sender_id"`
	ConversationID string         `json:"conversation_id"`
	Type           MessageType    `json:"type"`
	Priority       Priority       `json:"priority"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// NewMessage creates a text message with defaults applied.
func NewMessage(content, senderID, conversationID string) *Message {
	return &Message{
		Content:        content,
		SenderID:       senderID,
		ConversationID: conversationID,
		Type:           MessageTypeText,
		Priority:       PriorityNormal,
		Metadata:       map[string]any{},
		Timestamp:      time.Now(),
	}
}

// Clone returns a shallow copy with its own metadata map.
// Derived messages built by the executor mutate metadata; the original
// message must not observe those writes.
func (m *Message) Clone() *Message {
	clone := *m
	clone.Metadata = make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		clone.Metadata[k] = v
	}
	return &clone
}

// Serialized returns the flat map representation embedded in
// collaboration tasks and prompt context.
func (m *Message) Serialized() map[string]any {
	return map[string]any{
		"content":         m.Content,
		"sender_id":       m.SenderID,
		"conversation_id": m.ConversationID,
		"type":            string(m.Type),
		"priority":        string(m.Priority),
		"metadata":        m.Metadata,
		"timestamp":       m.Timestamp.Format(time.RFC3339),
	}
}
