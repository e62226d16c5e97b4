package database

import (
	"context"

	"caretalk/internal/models"
	"caretalk/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AppendMessage assigns the store-side sequence and durably persists the
// message. The message is immutable after this point.
func (m *MongoDB) AppendMessage(ctx context.Context, msg *models.Message) error {
	msg.Seq = m.seq.Generate().Int64()

	_, err := m.Messages.InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return utils.NewAppError(utils.ErrConflict, "message already exists: "+msg.ID, err)
		}
		return utils.NewConnectivityError("append", err)
	}
	return nil
}

// ListMessages retrieves a conversation's messages oldest-first, which is
// also the order subscriptions deliver.
func (m *MongoDB) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	filter := bson.M{"conversationId": conversationID}
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})

	cursor, err := m.Messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, utils.NewConnectivityError("listMessages", err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, utils.NewConnectivityError("listMessages", err)
	}
	return messages, nil
}
