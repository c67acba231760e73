// Package message defines the domain message model shared by the pipeline,
// the history cache, and the channel adapters.
package message

import (
	"strings"
	"time"
)

// Role identifies the conversational role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// AttachmentType classifies a media reference carried by a message.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentGIF   AttachmentType = "gif"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
	AttachmentFile  AttachmentType = "file"
)

// Attachment is a structured media reference, never raw bytes.
type Attachment struct {
	Type AttachmentType `json:"type"`
	URL  string         `json:"url,omitempty"`
	Name string         `json:"name,omitempty"`
	Mime string         `json:"mime,omitempty"`
}

// Message is one turn of a conversation. Values are immutable once created:
// enrichment steps build a new Message rather than mutating in place.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	AuthorID    string       `json:"author_id"`
	DisplayName string       `json:"display_name"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// IsEmpty reports whether the message carries neither text nor attachments.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0
}

// WithContent returns a copy of the message with the content replaced.
func (m Message) WithContent(content string) Message {
	m.Content = content
	return m
}
