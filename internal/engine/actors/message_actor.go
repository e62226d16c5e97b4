package actors

import (
	"context"
	"log"
	"time"

	"caretalk/internal/models"
	"caretalk/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Message types for MessageActor
type (
	AppendMessageMsg struct {
		ConversationID string             `json:"conversationId"`
		Sender         models.Participant `json:"sender"`
		Content        models.Content     `json:"content"`
	}

	ListMessagesMsg struct {
		ConversationID string `json:"conversationId"`
	}
)

// MessageActor owns the append path of one logical message channel:
// validate, persist with a store-assigned sequence, then project the
// summary and unread counters onto the conversation. Appends are
// serialized through the actor mailbox, so the two writes of one append
// never interleave with another append's.
type MessageActor struct {
	messages      MessageStore
	conversations ConversationStore
	notifier      Notifier
	metrics       *utils.MetricsCollector
	timeout       time.Duration
}

func NewMessageActor(messages MessageStore, conversations ConversationStore, notifier Notifier, metrics *utils.MetricsCollector) actor.Actor {
	return &MessageActor{
		messages:      messages,
		conversations: conversations,
		notifier:      notifier,
		metrics:       metrics,
		timeout:       5 * time.Second,
	}
}

func (a *MessageActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *AppendMessageMsg:
		a.handleAppend(context, msg)
	case *ListMessagesMsg:
		a.handleList(context, msg)
	}
}

func (a *MessageActor) handleAppend(context actor.Context, msg *AppendMessageMsg) {
	startTime := time.Now()

	newMessage, err := models.NewMessage(msg.ConversationID, msg.Sender, msg.Content)
	if err != nil {
		context.Respond(asAppError(err, "append"))
		return
	}

	ctx, cancel := a.opContext()
	defer cancel()

	conv, err := a.conversations.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		context.Respond(asAppError(err, "append"))
		return
	}
	if !conv.HasParticipant(msg.Sender.ID) {
		context.Respond(utils.NewAppError(utils.ErrForbidden, "sender is not a participant of conversation "+msg.ConversationID, nil))
		return
	}

	if err := a.messages.AppendMessage(ctx, newMessage); err != nil {
		context.Respond(asAppError(err, "append"))
		return
	}

	// The summary/counter projection is part of the same logical append.
	// It may land eventually relative to the insert, but it is never
	// skipped once the message is durable.
	recipients := conv.OtherParticipants(msg.Sender.ID)
	if err := a.conversations.RecordNewMessage(ctx, newMessage, recipients); err != nil {
		log.Printf("Message %s persisted but summary update failed for conversation %s: %v", newMessage.ID, msg.ConversationID, err)
		context.Respond(asAppError(err, "append"))
		return
	}

	if a.notifier != nil {
		for _, recipient := range recipients {
			a.notifier.NotifyNewMessage(recipient, newMessage)
		}
	}

	a.metrics.IncrementMessagesSent()
	a.metrics.AddOperationLatency("append_message", time.Since(startTime))
	context.Respond(newMessage)
}

func (a *MessageActor) handleList(context actor.Context, msg *ListMessagesMsg) {
	ctx, cancel := a.opContext()
	defer cancel()

	messages, err := a.messages.ListMessages(ctx, msg.ConversationID)
	if err != nil {
		context.Respond(asAppError(err, "listMessages"))
		return
	}
	context.Respond(messages)
}

func (a *MessageActor) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}
