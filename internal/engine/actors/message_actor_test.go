package actors

import (
	"context"
	"testing"

	"caretalk/internal/models"
	"caretalk/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
)

func spawnMessageActor(t *testing.T, store *fakeStore, notifier Notifier) (*actor.ActorSystem, *actor.PID) {
	t.Helper()
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMessageActor(store, store, notifier, utils.NewMetricsCollector())
	})
	return system, system.Root.Spawn(props)
}

func seedConversation(t *testing.T, store *fakeStore, a, b models.Participant) *models.Conversation {
	t.Helper()
	conv, err := store.ResolveConversation(context.Background(), a, b)
	assert.NoError(t, err)
	return conv
}

func TestAppendMessageUpdatesSummaryAndUnread(t *testing.T) {
	store := newFakeStore()
	notifier := newRecordingNotifier()
	system, pid := spawnMessageActor(t, store, notifier)

	doctor := models.Participant{ID: "doc-1", DisplayName: "Dr. Rivera"}
	patient := models.Participant{ID: "pat-9", DisplayName: "Pat Morgan"}
	conv := seedConversation(t, store, doctor, patient)

	result := request(t, system, pid, &AppendMessageMsg{
		ConversationID: conv.ID,
		Sender:         doctor,
		Content:        models.Content{Kind: models.KindText, Text: "take the pills twice a day"},
	})
	msg, ok := result.(*models.Message)
	assert.True(t, ok, "expected a message, got %T", result)
	assert.Equal(t, int64(1), msg.Seq)

	store.mu.Lock()
	stored := store.conversations[conv.ID]
	assert.Equal(t, "take the pills twice a day", stored.LastMessage.Text)
	assert.Equal(t, "doc-1", stored.LastMessage.SenderID)
	assert.Equal(t, 1, stored.Unread["pat-9"], "recipient unread increments")
	assert.Equal(t, 0, stored.Unread["doc-1"], "sender unread stays untouched")
	store.mu.Unlock()

	delivered := notifier.deliveredTo("pat-9")
	assert.Len(t, delivered, 1)
	assert.Equal(t, msg.ID, delivered[0].ID)
	assert.Empty(t, notifier.deliveredTo("doc-1"), "sender is not notified")
}

func TestAppendAssignsMonotonicSequence(t *testing.T) {
	store := newFakeStore()
	system, pid := spawnMessageActor(t, store, nil)

	doctor := models.Participant{ID: "doc-1"}
	patient := models.Participant{ID: "pat-9"}
	conv := seedConversation(t, store, doctor, patient)

	var seqs []int64
	for i := 0; i < 5; i++ {
		result := request(t, system, pid, &AppendMessageMsg{
			ConversationID: conv.ID,
			Sender:         doctor,
			Content:        models.Content{Kind: models.KindText, Text: "hello"},
		})
		msg := result.(*models.Message)
		seqs = append(seqs, msg.Seq)
	}

	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1], "sequence must grow with each append")
	}
}

func TestUnreadAccumulatesUntilRead(t *testing.T) {
	store := newFakeStore()
	system, pid := spawnMessageActor(t, store, nil)

	doctor := models.Participant{ID: "doc-1"}
	patient := models.Participant{ID: "pat-9"}
	conv := seedConversation(t, store, doctor, patient)

	for i := 0; i < 3; i++ {
		request(t, system, pid, &AppendMessageMsg{
			ConversationID: conv.ID,
			Sender:         doctor,
			Content:        models.Content{Kind: models.KindText, Text: "checking in"},
		})
	}

	store.mu.Lock()
	assert.Equal(t, 3, store.conversations[conv.ID].Unread["pat-9"])
	store.mu.Unlock()

	assert.NoError(t, store.MarkRead(context.Background(), conv.ID, "pat-9"))

	store.mu.Lock()
	assert.Equal(t, 0, store.conversations[conv.ID].Unread["pat-9"])
	store.mu.Unlock()
}

func TestAppendRejectsNonParticipant(t *testing.T) {
	store := newFakeStore()
	system, pid := spawnMessageActor(t, store, nil)

	conv := seedConversation(t, store, models.Participant{ID: "doc-1"}, models.Participant{ID: "pat-9"})

	result := request(t, system, pid, &AppendMessageMsg{
		ConversationID: conv.ID,
		Sender:         models.Participant{ID: "intruder"},
		Content:        models.Content{Kind: models.KindText, Text: "hello"},
	})
	appErr, ok := result.(*utils.AppError)
	assert.True(t, ok, "expected an AppError, got %T", result)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)
}

func TestAppendRejectsInvalidContent(t *testing.T) {
	store := newFakeStore()
	system, pid := spawnMessageActor(t, store, nil)

	conv := seedConversation(t, store, models.Participant{ID: "doc-1"}, models.Participant{ID: "pat-9"})

	result := request(t, system, pid, &AppendMessageMsg{
		ConversationID: conv.ID,
		Sender:         models.Participant{ID: "doc-1"},
		Content:        models.Content{Kind: models.KindText, Text: "   "},
	})
	appErr, ok := result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrValidation, appErr.Code)

	store.mu.Lock()
	assert.Empty(t, store.messages[conv.ID], "nothing persists when validation fails")
	store.mu.Unlock()
}

func TestAppendToUnknownConversation(t *testing.T) {
	store := newFakeStore()
	system, pid := spawnMessageActor(t, store, nil)

	result := request(t, system, pid, &AppendMessageMsg{
		ConversationID: "missing",
		Sender:         models.Participant{ID: "doc-1"},
		Content:        models.Content{Kind: models.KindText, Text: "hello"},
	})
	appErr, ok := result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrNotFound, appErr.Code)
}

func TestAppendFileMessage(t *testing.T) {
	store := newFakeStore()
	notifier := newRecordingNotifier()
	system, pid := spawnMessageActor(t, store, notifier)

	doctor := models.Participant{ID: "doc-1"}
	conv := seedConversation(t, store, doctor, models.Participant{ID: "pat-9"})

	result := request(t, system, pid, &AppendMessageMsg{
		ConversationID: conv.ID,
		Sender:         doctor,
		Content: models.Content{
			Kind: models.KindFile,
			Text: "Medical report",
			Attachment: &models.Attachment{
				URL:      "http://localhost:8080/attachments/abc123",
				FileName: "bloodwork.pdf",
				FileSize: 48123,
				MimeType: "application/pdf",
			},
		},
	})
	msg, ok := result.(*models.Message)
	assert.True(t, ok, "expected a message, got %T", result)
	assert.Equal(t, models.KindFile, msg.Kind)

	store.mu.Lock()
	assert.Equal(t, "bloodwork.pdf", store.conversations[conv.ID].LastMessage.Text, "file summary shows the file name")
	store.mu.Unlock()
}

func TestListMessagesReturnsAppendOrder(t *testing.T) {
	store := newFakeStore()
	system, pid := spawnMessageActor(t, store, nil)

	doctor := models.Participant{ID: "doc-1"}
	conv := seedConversation(t, store, doctor, models.Participant{ID: "pat-9"})

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		request(t, system, pid, &AppendMessageMsg{
			ConversationID: conv.ID,
			Sender:         doctor,
			Content:        models.Content{Kind: models.KindText, Text: text},
		})
	}

	result := request(t, system, pid, &ListMessagesMsg{ConversationID: conv.ID})
	msgs, ok := result.([]models.Message)
	assert.True(t, ok, "expected a message list, got %T", result)
	assert.Len(t, msgs, 3)
	for i, text := range texts {
		assert.Equal(t, text, msgs[i].Text)
	}
}

func TestAppendSurfacesProjectionFailure(t *testing.T) {
	store := newFakeStore()
	store.failRecord = assert.AnError
	system, pid := spawnMessageActor(t, store, nil)

	doctor := models.Participant{ID: "doc-1"}
	conv := seedConversation(t, store, doctor, models.Participant{ID: "pat-9"})

	result := request(t, system, pid, &AppendMessageMsg{
		ConversationID: conv.ID,
		Sender:         doctor,
		Content:        models.Content{Kind: models.KindText, Text: "hello"},
	})
	appErr, ok := result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrConnectivity, appErr.Code)
}
