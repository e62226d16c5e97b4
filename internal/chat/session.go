// Package chat is the screen-facing façade over the messaging core: it
// composes the conversation registry, the message channel and the
// attachment uploader into one open-conversation session.
package chat

import (
	"context"
	"io"
	"strings"
	"sync"

	"caretalk/internal/models"
	"caretalk/internal/utils"
)

// DefaultFileCaption is the text body attached to file messages when the
// sender supplies no caption.
const DefaultFileCaption = "Medical report"

// Registry is the conversation-registry seam the controller needs.
type Registry interface {
	Resolve(ctx context.Context, a, b models.Participant) (*models.Conversation, error)
	MarkRead(ctx context.Context, conversationID, readerID string) error
}

// Channel is the message-channel seam: durable append plus live delivery.
type Channel interface {
	Append(ctx context.Context, conversationID string, sender models.Participant, content models.Content) (*models.Message, error)
	SubscribeMessages(conversationID string, onBatch func([]models.Message), onError func(error)) Subscription
}

// Subscription is a cancelable live feed handle. Cancel is idempotent
// and no callback fires after it returns.
type Subscription interface {
	Cancel()
}

// FileUpload describes the file handed over by the picker.
type FileUpload struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

// Uploader moves a local file into the object store and yields its
// stable URL.
type Uploader interface {
	Upload(ctx context.Context, conversationID, uploaderID string, file FileUpload, onProgress func(float64)) (string, error)
}

// Controller builds sessions for open conversations.
type Controller struct {
	registry     Registry
	channel      Channel
	uploader     Uploader
	maxFileBytes int64
}

func NewController(registry Registry, channel Channel, uploader Uploader, maxFileBytes int64) *Controller {
	return &Controller{
		registry:     registry,
		channel:      channel,
		uploader:     uploader,
		maxFileBytes: maxFileBytes,
	}
}

// MaxFileBytes is the upload policy cap enforced before any network call.
func (c *Controller) MaxFileBytes() int64 {
	return c.maxFileBytes
}

// Resolve finds or creates the conversation between two participants.
func (c *Controller) Resolve(ctx context.Context, a, b models.Participant) (*models.Conversation, error) {
	return c.registry.Resolve(ctx, a, b)
}

// SendText appends a text message from the sender. Leading/trailing
// whitespace is trimmed and empty text is rejected before any network
// call.
func (c *Controller) SendText(ctx context.Context, conversationID string, sender models.Participant, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.NewValidationError("message text must not be empty")
	}

	msg, err := c.channel.Append(ctx, conversationID, sender, models.Content{
		Kind: models.KindText,
		Text: text,
	})
	if err != nil {
		return nil, utils.WrapOperation("sendText", conversationID, err)
	}
	return msg, nil
}

// SendFile uploads the file and appends the referencing message. The
// size policy is enforced first, so an oversized file never reaches the
// network; an upload failure never produces a message.
func (c *Controller) SendFile(ctx context.Context, conversationID string, sender models.Participant, file FileUpload, onProgress func(float64)) (*models.Message, error) {
	if file.FileName == "" || file.Body == nil {
		return nil, utils.NewValidationError("file name and content are required")
	}
	if c.maxFileBytes > 0 && file.Size > c.maxFileBytes {
		return nil, utils.NewValidationError("file too large")
	}

	url, err := c.uploader.Upload(ctx, conversationID, sender.ID, file, onProgress)
	if err != nil {
		return nil, utils.WrapOperation("upload", conversationID, err)
	}

	msg, err := c.channel.Append(ctx, conversationID, sender, models.Content{
		Kind: models.KindFile,
		Text: DefaultFileCaption,
		Attachment: &models.Attachment{
			URL:      url,
			FileName: file.FileName,
			FileSize: file.Size,
			MimeType: file.MimeType,
		},
	})
	if err != nil {
		// The uploaded object stays behind unreferenced; accepted leak,
		// reclaimed by out-of-band cleanup.
		return nil, utils.WrapOperation("sendFile", conversationID, err)
	}
	return msg, nil
}

// Open starts a session on a conversation: the viewer's unread counter
// is reset and a live message feed begins delivering to onBatch.
func (c *Controller) Open(ctx context.Context, conversationID string, viewer models.Participant, onBatch func([]models.Message), onError func(error)) (*Session, error) {
	if conversationID == "" || viewer.ID == "" {
		return nil, utils.NewValidationError("conversation ID and viewer are required")
	}

	if err := c.registry.MarkRead(ctx, conversationID, viewer.ID); err != nil {
		return nil, utils.WrapOperation("open", conversationID, err)
	}

	sub := c.channel.SubscribeMessages(conversationID, onBatch, onError)
	return &Session{
		controller:     c,
		conversationID: conversationID,
		viewer:         viewer,
		sub:            sub,
	}, nil
}

// Session is one viewer's open conversation.
type Session struct {
	controller     *Controller
	conversationID string
	viewer         models.Participant
	sub            Subscription
	closeOnce      sync.Once
}

// ConversationID identifies the conversation this session is on.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// SendText appends a text message from the session's viewer.
func (s *Session) SendText(ctx context.Context, text string) (*models.Message, error) {
	return s.controller.SendText(ctx, s.conversationID, s.viewer, text)
}

// SendFile uploads the file and appends the referencing message, as the
// session's viewer.
func (s *Session) SendFile(ctx context.Context, file FileUpload, onProgress func(float64)) (*models.Message, error) {
	return s.controller.SendFile(ctx, s.conversationID, s.viewer, file, onProgress)
}

// MarkRead re-acknowledges the conversation, for messages arriving while
// the session is open.
func (s *Session) MarkRead(ctx context.Context) error {
	if err := s.controller.registry.MarkRead(ctx, s.conversationID, s.viewer.ID); err != nil {
		return utils.WrapOperation("markRead", s.conversationID, err)
	}
	return nil
}

// Close cancels the live feed. Idempotent; no message callbacks fire
// after it returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.sub.Cancel()
	})
}
