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

// messageSet accumulates a conversation's messages, de-duplicated by
// message ID. Change notifications are at-least-once, so the set is what
// turns them into a single consistent ordered view.
type messageSet struct {
	byID map[string]models.Message
}

func newMessageSet() *messageSet {
	return &messageSet{byID: make(map[string]models.Message)}
}

// put adds a message, reporting whether it was new.
func (s *messageSet) put(msg models.Message) bool {
	if _, exists := s.byID[msg.ID]; exists {
		return false
	}
	s.byID[msg.ID] = msg
	return true
}

func (s *messageSet) putAll(msgs []models.Message) {
	for _, msg := range msgs {
		s.put(msg)
	}
}

// snapshot returns the complete ordered set, oldest-first by sequence.
func (s *messageSet) snapshot() []models.Message {
	out := make([]models.Message, 0, len(s.byID))
	for _, msg := range s.byID {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type messageChangeEvent struct {
	OperationType string         `bson:"operationType"`
	FullDocument  models.Message `bson:"fullDocument"`
}

// changeStream is the part of *mongo.ChangeStream the feed loops consume.
type changeStream interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	ResumeToken() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

// messageFeedSource supplies the message feed with a change stream and
// the snapshot that backs it.
type messageFeedSource interface {
	watchMessages(ctx context.Context, conversationID string, resumeAfter bson.Raw) (changeStream, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

func (m *MongoDB) watchMessages(ctx context.Context, conversationID string, resumeAfter bson.Raw) (changeStream, error) {
	pipeline := []bson.M{{
		"$match": bson.M{
			"operationType":               "insert",
			"fullDocument.conversationId": conversationID,
		},
	}}
	opts := options.ChangeStream()
	if resumeAfter != nil {
		opts.SetResumeAfter(resumeAfter)
	}
	return m.Messages.Watch(ctx, pipeline, opts)
}

// SubscribeMessages opens a live feed over one conversation's messages:
// an initial oldest-first batch, then the complete re-ordered set on
// every append. The feed survives transient disconnects by resuming the
// change stream from its last token.
func (m *MongoDB) SubscribeMessages(conversationID string, onBatch func([]models.Message), onError func(error)) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := newSubscription(cancel)
	go runMessageFeed(ctx, sub, m, conversationID, onBatch, onError)
	return sub
}

func runMessageFeed(ctx context.Context, sub *Subscription, source messageFeedSource, conversationID string, onBatch func([]models.Message), onError func(error)) {
	defer close(sub.done)

	set := newMessageSet()
	var resumeToken bson.Raw
	initial := true

	for {
		if ctx.Err() != nil {
			return
		}

		if !initial {
			sub.setState(StateReconnecting)
		}

		stream, err := source.watchMessages(ctx, conversationID, resumeToken)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sub.setState(StateDisconnected)
			onError(utils.NewConnectivityError("subscribe", err))
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

		// The snapshot is loaded after the stream is open so an append
		// landing in between shows up in both and is de-duplicated,
		// rather than being missed. A reconnect without a resume token
		// also re-snapshots, since the stream alone cannot cover the
		// outage.
		if initial || resumeToken == nil {
			existing, err := source.ListMessages(ctx, conversationID)
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
			onBatch(set.snapshot())
		} else {
			sub.setState(StateLive)
		}

		for stream.Next(ctx) {
			var event messageChangeEvent
			if err := stream.Decode(&event); err != nil {
				log.Printf("Failed to decode message change event for conversation %s: %v", conversationID, err)
				continue
			}
			if tok := stream.ResumeToken(); tok != nil {
				resumeToken = tok
			}
			if set.put(event.FullDocument) {
				onBatch(set.snapshot())
			}
		}

		err = stream.Err()
		stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}

		sub.setState(StateDisconnected)
		onError(utils.NewConnectivityError("subscribe", err))
		if !sleepOrDone(ctx, reconnectDelay) {
			return
		}
	}
}
