package engine

import (
	"context"
	"time"

	"caretalk/internal/engine/actors"
	"caretalk/internal/models"
	"caretalk/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Engine coordinates communication between actors and exposes typed
// request helpers so callers never deal with futures or untyped results.
type Engine struct {
	system            *actor.ActorSystem
	conversationActor *actor.PID
	messageActor      *actor.PID
	timeout           time.Duration
}

func NewEngine(system *actor.ActorSystem, conversations actors.ConversationStore, messages actors.MessageStore, notifier actors.Notifier, metrics *utils.MetricsCollector) *Engine {
	context := system.Root

	conversationProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewConversationActor(conversations, metrics)
	})
	conversationPID := context.Spawn(conversationProps)

	messageProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewMessageActor(messages, conversations, notifier, metrics)
	})
	messagePID := context.Spawn(messageProps)

	return &Engine{
		system:            system,
		conversationActor: conversationPID,
		messageActor:      messagePID,
		timeout:           5 * time.Second,
	}
}

// GetConversationActor returns the PID of the conversation actor
func (e *Engine) GetConversationActor() *actor.PID {
	return e.conversationActor
}

// GetMessageActor returns the PID of the message actor
func (e *Engine) GetMessageActor() *actor.PID {
	return e.messageActor
}

// Resolve finds or creates the conversation for a participant pair.
func (e *Engine) Resolve(ctx context.Context, a, b models.Participant) (*models.Conversation, error) {
	result, err := e.request(ctx, e.conversationActor, &actors.ResolveConversationMsg{ParticipantA: a, ParticipantB: b})
	if err != nil {
		return nil, err
	}
	return result.(*models.Conversation), nil
}

// Conversation loads one conversation by ID.
func (e *Engine) Conversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	result, err := e.request(ctx, e.conversationActor, &actors.GetConversationMsg{ConversationID: conversationID})
	if err != nil {
		return nil, err
	}
	return result.(*models.Conversation), nil
}

// ConversationsFor lists a user's conversations, most recent first.
func (e *Engine) ConversationsFor(ctx context.Context, userID string) ([]models.Conversation, error) {
	result, err := e.request(ctx, e.conversationActor, &actors.ListConversationsMsg{UserID: userID})
	if err != nil {
		return nil, err
	}
	return result.([]models.Conversation), nil
}

// MarkRead resets the reader's unread counter.
func (e *Engine) MarkRead(ctx context.Context, conversationID, readerID string) error {
	_, err := e.request(ctx, e.conversationActor, &actors.MarkReadMsg{ConversationID: conversationID, ReaderID: readerID})
	return err
}

// Append validates, persists and projects one new message.
func (e *Engine) Append(ctx context.Context, conversationID string, sender models.Participant, content models.Content) (*models.Message, error) {
	result, err := e.request(ctx, e.messageActor, &actors.AppendMessageMsg{ConversationID: conversationID, Sender: sender, Content: content})
	if err != nil {
		return nil, err
	}
	return result.(*models.Message), nil
}

// Messages lists a conversation's messages oldest-first.
func (e *Engine) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	result, err := e.request(ctx, e.messageActor, &actors.ListMessagesMsg{ConversationID: conversationID})
	if err != nil {
		return nil, err
	}
	return result.([]models.Message), nil
}

// request sends a message to an actor and normalizes the response:
// an *AppError result becomes the returned error, anything else is the
// typed payload. The request honors the caller's context deadline when
// it is tighter than the engine default.
func (e *Engine) request(ctx context.Context, pid *actor.PID, msg interface{}) (interface{}, error) {
	timeout := e.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	future := e.system.Root.RequestFuture(pid, msg, timeout)
	result, err := future.Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError(pid.String())
	}

	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}
