package database

import (
	"context"
	"log"
	"sort"

	"caretalk/internal/models"
	"caretalk/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// conversationSet holds a user's conversations keyed by ID. Updates
// replace the stored document, so the view always reflects the latest
// summary and unread counters.
type conversationSet struct {
	byID map[string]models.Conversation
}

func newConversationSet() *conversationSet {
	return &conversationSet{byID: make(map[string]models.Conversation)}
}

func (s *conversationSet) put(conv models.Conversation) {
	s.byID[conv.ID] = conv
}

func (s *conversationSet) putAll(convs []models.Conversation) {
	for _, conv := range convs {
		s.put(conv)
	}
}

// snapshot returns the conversations ordered by recency, newest first.
func (s *conversationSet) snapshot() []models.Conversation {
	out := make([]models.Conversation, 0, len(s.byID))
	for _, conv := range s.byID {
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type conversationChangeEvent struct {
	OperationType string              `bson:"operationType"`
	FullDocument  models.Conversation `bson:"fullDocument"`
}

// conversationFeedSource supplies the conversation feed with a change
// stream and the snapshot that backs it.
type conversationFeedSource interface {
	watchConversations(ctx context.Context, userID string, resumeAfter bson.Raw) (changeStream, error)
	GetConversationsFor(ctx context.Context, userID string) ([]models.Conversation, error)
}

func (m *MongoDB) watchConversations(ctx context.Context, userID string, resumeAfter bson.Raw) (changeStream, error) {
	pipeline := []bson.M{{
		"$match": bson.M{
			"operationType":             bson.M{"$in": []string{"insert", "update", "replace"}},
			"fullDocument.participants": userID,
		},
	}}
	// UpdateLookup so counter and summary updates arrive as the full
	// document, not a field diff.
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if resumeAfter != nil {
		opts.SetResumeAfter(resumeAfter)
	}
	return m.Conversations.Watch(ctx, pipeline, opts)
}

// SubscribeConversationsFor opens a live recency-ordered feed of a
// user's conversations. Every create, new-message summary update and
// read-acknowledgement produces a fresh complete snapshot. The feed is
// cancelable via the returned handle and restartable by subscribing
// again.
func (m *MongoDB) SubscribeConversationsFor(userID string, onUpdate func([]models.Conversation), onError func(error)) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := newSubscription(cancel)
	go runConversationFeed(ctx, sub, m, userID, onUpdate, onError)
	return sub
}

func runConversationFeed(ctx context.Context, sub *Subscription, source conversationFeedSource, userID string, onUpdate func([]models.Conversation), onError func(error)) {
	defer close(sub.done)

	set := newConversationSet()
	var resumeToken bson.Raw
	initial := true

	for {
		if ctx.Err() != nil {
			return
		}

		if !initial {
			sub.setState(StateReconnecting)
		}

		stream, err := source.watchConversations(ctx, userID, resumeToken)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sub.setState(StateDisconnected)
			onError(utils.NewConnectivityError("subscribeConversations", err))
			if !sleepOrDone(ctx, reconnectDelay) {
				return
			}
			continue
		}

		// Capture the stream's opening token right away. If the stream
		// dies before delivering a single event, the next watch still
		// resumes from here instead of from "now".
		if tok := stream.ResumeToken(); tok != nil {
			resumeToken = tok
		}

		if initial || resumeToken == nil {
			existing, err := source.GetConversationsFor(ctx, userID)
			if err != nil {
				stream.Close(context.Background())
				if ctx.Err() != nil {
					return
				}
				sub.setState(StateDisconnected)
				onError(err)
				if !sleepOrDone(ctx, reconnectDelay) {
					return
				}
				continue
			}
			set.putAll(existing)
			initial = false
			sub.setState(StateLive)
			onUpdate(set.snapshot())
		} else {
			sub.setState(StateLive)
		}

		for stream.Next(ctx) {
			var event conversationChangeEvent
			if err := stream.Decode(&event); err != nil {
				log.Printf("Failed to decode conversation change event for user %s: %v", userID, err)
				continue
			}
			if tok := stream.ResumeToken(); tok != nil {
				resumeToken = tok
			}
			if event.FullDocument.ID == "" {
				continue
			}
			set.put(event.FullDocument)
			onUpdate(set.snapshot())
		}

		err = stream.Err()
		stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}

		sub.setState(StateDisconnected)
		onError(utils.NewConnectivityError("subscribeConversations", err))
		if !sleepOrDone(ctx, reconnectDelay) {
			return
		}
	}
}
