package models

import (
	"testing"

	"caretalk/internal/utils"

	"github.com/stretchr/testify/assert"
)

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent(Content{Kind: KindText, Text: "hello"}))
	assert.NoError(t, ValidateContent(Content{
		Kind:       KindFile,
		Attachment: &Attachment{URL: "http://localhost:8080/attachments/abc", FileName: "scan.pdf"},
	}))

	err := ValidateContent(Content{Kind: KindText, Text: "   "})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation), "blank text must fail validation")

	err = ValidateContent(Content{Kind: KindFile})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation), "file kind without attachment must fail")

	err = ValidateContent(Content{Kind: "sticker", Text: "x"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation), "unknown kind must fail")
}

func TestNewMessage(t *testing.T) {
	sender := Participant{ID: "doc-1", DisplayName: "Dr. Rivera"}

	msg, err := NewMessage("conv-1", sender, Content{Kind: KindText, Text: "  hello  "})
	assert.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "conv-1", msg.ConversationID)
	assert.Equal(t, "hello", msg.Text, "text is trimmed")
	assert.Equal(t, int64(0), msg.Seq, "sequence is assigned at append time")
	assert.False(t, msg.CreatedAt.IsZero())

	_, err = NewMessage("", sender, Content{Kind: KindText, Text: "hello"})
	assert.Error(t, err)

	_, err = NewMessage("conv-1", Participant{}, Content{Kind: KindText, Text: "hello"})
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	text := &Message{Kind: KindText, Text: "see you tomorrow"}
	assert.Equal(t, "see you tomorrow", text.Preview())

	file := &Message{
		Kind:       KindFile,
		Text:       "Medical report",
		Attachment: &Attachment{FileName: "bloodwork.pdf"},
	}
	assert.Equal(t, "bloodwork.pdf", file.Preview(), "file preview shows the file name")
}
