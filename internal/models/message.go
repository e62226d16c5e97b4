package models

import (
	"strings"
	"time"

	"caretalk/internal/utils"

	"github.com/google/uuid"
)

// Message kinds.
const (
	KindText = "text"
	KindFile = "file"
)

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	URL      string `json:"url" bson:"url"`
	FileName string `json:"fileName" bson:"fileName"`
	FileSize int64  `json:"fileSize" bson:"fileSize"`
	MimeType string `json:"mimeType" bson:"mimeType"`
}

// Content is the caller-supplied part of a message: everything except
// identity and the store-assigned ordering fields.
type Content struct {
	Kind       string      `json:"kind"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Message is one immutable unit of conversation content. Seq is the
// store-assigned monotonic sequence; messages are totally ordered by it
// within a conversation, independent of client clocks.
type Message struct {
	ID             string      `json:"id" bson:"_id"`
	ConversationID string      `json:"conversationId" bson:"conversationId"`
	Seq            int64       `json:"seq" bson:"seq"`
	Sender         Participant `json:"sender" bson:"sender"`
	Kind           string      `json:"kind" bson:"kind"`
	Text           string      `json:"text" bson:"text"`
	Attachment     *Attachment `json:"attachment,omitempty" bson:"attachment,omitempty"`
	CreatedAt      time.Time   `json:"createdAt" bson:"createdAt"`
}

// ValidateContent enforces the kind/payload invariants: text messages
// need non-empty text, file messages need a non-empty attachment URL.
func ValidateContent(content Content) error {
	switch content.Kind {
	case KindText:
		if strings.TrimSpace(content.Text) == "" {
			return utils.NewValidationError("text message requires non-empty text")
		}
	case KindFile:
		if content.Attachment == nil || content.Attachment.URL == "" {
			return utils.NewValidationError("file message requires an attachment URL")
		}
	default:
		return utils.NewValidationError("unknown message kind: " + content.Kind)
	}
	return nil
}

// NewMessage builds a validated message with a fresh ID. Seq is zero
// until the store assigns it at append time.
func NewMessage(conversationID string, sender Participant, content Content) (*Message, error) {
	if conversationID == "" {
		return nil, utils.NewValidationError("conversation ID is required")
	}
	if sender.ID == "" {
		return nil, utils.NewValidationError("sender ID is required")
	}
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	return &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Sender:         sender,
		Kind:           content.Kind,
		Text:           strings.TrimSpace(content.Text),
		Attachment:     content.Attachment,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Preview is the text shown in the conversation list summary: the body
// for text messages, the file name for attachments.
func (m *Message) Preview() string {
	if m.Kind == KindFile && m.Attachment != nil && m.Attachment.FileName != "" {
		return m.Attachment.FileName
	}
	return m.Text
}
