package actors

import (
	"context"
	"log"
	"time"

	"caretalk/internal/models"
	"caretalk/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Message types for ConversationActor
type (
	ResolveConversationMsg struct {
		ParticipantA models.Participant `json:"participantA"`
		ParticipantB models.Participant `json:"participantB"`
	}

	GetConversationMsg struct {
		ConversationID string `json:"conversationId"`
	}

	ListConversationsMsg struct {
		UserID string `json:"userId"`
	}

	MarkReadMsg struct {
		ConversationID string `json:"conversationId"`
		ReaderID       string `json:"readerId"` // The user acknowledging their unread messages
	}
)

// ConversationActor owns the conversation registry: idempotent
// find-or-create per participant pair, and the read-acknowledgement
// side of the unread counters. Summary and counter updates on new
// messages run through the MessageActor's append path.
type ConversationActor struct {
	store   ConversationStore
	metrics *utils.MetricsCollector
	timeout time.Duration
}

func NewConversationActor(store ConversationStore, metrics *utils.MetricsCollector) actor.Actor {
	return &ConversationActor{
		store:   store,
		metrics: metrics,
		timeout: 5 * time.Second,
	}
}

func (a *ConversationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *ResolveConversationMsg:
		a.handleResolve(context, msg)
	case *GetConversationMsg:
		a.handleGet(context, msg)
	case *ListConversationsMsg:
		a.handleList(context, msg)
	case *MarkReadMsg:
		a.handleMarkRead(context, msg)
	}
}

func (a *ConversationActor) handleResolve(context actor.Context, msg *ResolveConversationMsg) {
	startTime := time.Now()

	ctx, cancel := a.opContext()
	defer cancel()

	conv, err := a.store.ResolveConversation(ctx, msg.ParticipantA, msg.ParticipantB)
	if err != nil {
		context.Respond(asAppError(err, "resolveConversation"))
		return
	}

	a.metrics.AddOperationLatency("resolve_conversation", time.Since(startTime))
	context.Respond(conv)
}

func (a *ConversationActor) handleGet(context actor.Context, msg *GetConversationMsg) {
	ctx, cancel := a.opContext()
	defer cancel()

	conv, err := a.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		context.Respond(asAppError(err, "getConversation"))
		return
	}
	context.Respond(conv)
}

func (a *ConversationActor) handleList(context actor.Context, msg *ListConversationsMsg) {
	startTime := time.Now()

	ctx, cancel := a.opContext()
	defer cancel()

	conversations, err := a.store.GetConversationsFor(ctx, msg.UserID)
	if err != nil {
		context.Respond(asAppError(err, "listConversations"))
		return
	}

	a.metrics.AddOperationLatency("list_conversations", time.Since(startTime))
	context.Respond(conversations)
}

func (a *ConversationActor) handleMarkRead(context actor.Context, msg *MarkReadMsg) {
	startTime := time.Now()

	if msg.ConversationID == "" || msg.ReaderID == "" {
		context.Respond(utils.NewValidationError("conversation ID and reader ID are required"))
		return
	}

	ctx, cancel := a.opContext()
	defer cancel()

	if err := a.store.MarkRead(ctx, msg.ConversationID, msg.ReaderID); err != nil {
		context.Respond(asAppError(err, "markRead"))
		return
	}

	log.Printf("Conversation %s marked read by %s", msg.ConversationID, msg.ReaderID)
	a.metrics.AddOperationLatency("mark_read", time.Since(startTime))
	context.Respond(true)
}

func (a *ConversationActor) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

// asAppError keeps the error kind intact across the actor boundary;
// anything untyped from the store is treated as a connectivity failure.
func asAppError(err error, operation string) *utils.AppError {
	if appErr, ok := err.(*utils.AppError); ok {
		return appErr
	}
	return utils.NewConnectivityError(operation, err)
}
