package actors

import (
	"context"
	"sort"
	"sync"

	"caretalk/internal/models"
	"caretalk/internal/utils"
)

// fakeStore is an in-memory ConversationStore + MessageStore mirroring
// the durable store's semantics closely enough for actor tests.
type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
	nextSeq       int64

	failResolve error
	failAppend  error
	failRecord  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func (f *fakeStore) ResolveConversation(ctx context.Context, a, b models.Participant) (*models.Conversation, error) {
	if f.failResolve != nil {
		return nil, f.failResolve
	}
	conv, err := models.NewConversation(a, b)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.conversations[conv.ID]; ok {
		return existing, nil
	}
	f.conversations[conv.ID] = conv
	return conv, nil
}

func (f *fakeStore) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, utils.NewNotFoundError("conversation", conversationID)
	}
	return conv, nil
}

func (f *fakeStore) GetConversationsFor(ctx context.Context, userID string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, conv := range f.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, *conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (f *fakeStore) RecordNewMessage(ctx context.Context, msg *models.Message, recipients []string) error {
	if f.failRecord != nil {
		return f.failRecord
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[msg.ConversationID]
	if !ok {
		return utils.NewNotFoundError("conversation", msg.ConversationID)
	}
	conv.LastMessage = &models.LastMessage{
		Text:      msg.Preview(),
		SenderID:  msg.Sender.ID,
		Kind:      msg.Kind,
		CreatedAt: msg.CreatedAt,
	}
	conv.UpdatedAt = msg.CreatedAt
	for _, r := range recipients {
		conv.Unread[r]++
	}
	return nil
}

func (f *fakeStore) MarkRead(ctx context.Context, conversationID, readerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[conversationID]
	if !ok {
		return utils.NewNotFoundError("conversation", conversationID)
	}
	conv.Unread[readerID] = 0
	return nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if f.failAppend != nil {
		return f.failAppend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSeq++
	msg.Seq = f.nextSeq
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], *msg)
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := make([]models.Message, len(f.messages[conversationID]))
	copy(msgs, f.messages[conversationID])
	return msgs, nil
}

// recordingNotifier captures delivery fan-out for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	delivered map[string][]*models.Message
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{delivered: make(map[string][]*models.Message)}
}

func (n *recordingNotifier) NotifyNewMessage(recipientID string, msg *models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered[recipientID] = append(n.delivered[recipientID], msg)
}

func (n *recordingNotifier) deliveredTo(recipientID string) []*models.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.delivered[recipientID]
}
