package actors

import (
	"context"

	"caretalk/internal/models"
)

// ConversationStore is the durable-store seam the ConversationActor
// works against. Implemented by the MongoDB adapter; actor tests use
// in-memory fakes.
type ConversationStore interface {
	ResolveConversation(ctx context.Context, a, b models.Participant) (*models.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error)
	GetConversationsFor(ctx context.Context, userID string) ([]models.Conversation, error)
	RecordNewMessage(ctx context.Context, msg *models.Message, recipients []string) error
	MarkRead(ctx context.Context, conversationID, readerID string) error
}

// MessageStore is the durable-store seam for the append path.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

// Notifier pushes a freshly appended message to a recipient's live
// connections. May be nil when no delivery transport is wired.
type Notifier interface {
	NotifyNewMessage(recipientID string, msg *models.Message)
}
