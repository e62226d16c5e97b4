package engine

import (
	"context"

	"caretalk/internal/chat"
	"caretalk/internal/database"
	"caretalk/internal/models"
	"caretalk/internal/utils"
)

// ChannelAdapter satisfies chat.Channel: appends go through the actor
// engine, live feeds come straight from the store's change streams.
type ChannelAdapter struct {
	Engine  *Engine
	Streams *database.MongoDB
}

func (c ChannelAdapter) Append(ctx context.Context, conversationID string, sender models.Participant, content models.Content) (*models.Message, error) {
	return c.Engine.Append(ctx, conversationID, sender, content)
}

func (c ChannelAdapter) SubscribeMessages(conversationID string, onBatch func([]models.Message), onError func(error)) chat.Subscription {
	return c.Streams.SubscribeMessages(conversationID, onBatch, onError)
}

// UploaderAdapter satisfies chat.Uploader over the GridFS store.
type UploaderAdapter struct {
	Store   *database.MongoDB
	Metrics *utils.MetricsCollector
}

func (u UploaderAdapter) Upload(ctx context.Context, conversationID, uploaderID string, file chat.FileUpload, onProgress func(float64)) (string, error) {
	url, err := u.Store.UploadAttachment(ctx, database.UploadRequest{
		ConversationID: conversationID,
		UploaderID:     uploaderID,
		FileName:       file.FileName,
		MimeType:       file.MimeType,
		Size:           file.Size,
		Body:           file.Body,
	}, onProgress)
	if err != nil {
		return "", err
	}

	if u.Metrics != nil {
		u.Metrics.AddBytesUploaded(file.Size)
	}
	return url, nil
}
