package database

import (
	"context"

	"caretalk/internal/models"
	"caretalk/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ResolveConversation finds or creates the single conversation for a
// participant pair. The ID is derived deterministically from the sorted
// pair, so two participants racing to create converge on one document:
// the upsert only writes fields on insert, and the loser of the race
// simply reads the winner's document back.
func (m *MongoDB) ResolveConversation(ctx context.Context, a, b models.Participant) (*models.Conversation, error) {
	conv, err := models.NewConversation(a, b)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": conv.ID}
	update := bson.M{"$setOnInsert": conv}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var result models.Conversation
	err = m.Conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if err == nil {
		return &result, nil
	}

	if mongo.IsDuplicateKeyError(err) {
		// Lost a concurrent-create race; the document exists now, so
		// resolve against it instead of surfacing the conflict.
		if getErr := m.Conversations.FindOne(ctx, filter).Decode(&result); getErr == nil {
			return &result, nil
		}
		return nil, utils.NewAppError(utils.ErrConflict, "conversation create race could not be resolved", err)
	}

	return nil, utils.NewConnectivityError("resolveConversation", err)
}

// GetConversation retrieves a conversation by ID.
func (m *MongoDB) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := m.Conversations.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewNotFoundError("conversation", conversationID)
	}
	if err != nil {
		return nil, utils.NewConnectivityError("getConversation", err)
	}
	return &conv, nil
}

// GetConversationsFor retrieves a user's conversations, most recent first.
func (m *MongoDB) GetConversationsFor(ctx context.Context, userID string) ([]models.Conversation, error) {
	filter := bson.M{"participants": userID}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	cursor, err := m.Conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, utils.NewConnectivityError("listConversations", err)
	}
	defer cursor.Close(ctx)

	conversations := []models.Conversation{}
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, utils.NewConnectivityError("listConversations", err)
	}
	return conversations, nil
}

// RecordNewMessage updates the last-message summary and atomically
// increments every recipient's unread counter. The increments are $inc
// deltas, not read-modify-write, so concurrent senders stay correct.
func (m *MongoDB) RecordNewMessage(ctx context.Context, msg *models.Message, recipients []string) error {
	set := bson.M{
		"lastMessage": models.LastMessage{
			Text:      msg.Preview(),
			SenderID:  msg.Sender.ID,
			Kind:      msg.Kind,
			CreatedAt: msg.CreatedAt,
		},
		"updatedAt": msg.CreatedAt,
	}

	inc := bson.M{}
	for _, recipient := range recipients {
		inc["unread."+recipient] = 1
	}

	update := bson.M{"$set": set}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	result, err := m.Conversations.UpdateOne(ctx, bson.M{"_id": msg.ConversationID}, update)
	if err != nil {
		return utils.NewConnectivityError("recordNewMessage", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("conversation", msg.ConversationID)
	}
	return nil
}

// MarkRead resets the reader's unread counter to zero. Other
// participants' counters are untouched.
func (m *MongoDB) MarkRead(ctx context.Context, conversationID, readerID string) error {
	update := bson.M{"$set": bson.M{
		"unread." + readerID: 0,
	}}

	result, err := m.Conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, update)
	if err != nil {
		return utils.NewConnectivityError("markRead", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("conversation", conversationID)
	}
	return nil
}
