package models

import (
	"sort"
	"time"

	"caretalk/internal/utils"

	"github.com/google/uuid"
)

// Namespace for deterministic conversation IDs. Two participants always
// derive the same conversation ID regardless of who resolves first, so
// creation is idempotent without a transactional check-then-create.
var conversationNamespace = uuid.MustParse("8f1d6c52-4a3b-4a0e-9f76-2f1b6f0c9d41")

// Participant is the point-in-time profile snapshot captured when a
// conversation is created. It is denormalized on purpose: the registry
// does not fan out later profile updates.
type Participant struct {
	ID          string `json:"id" bson:"id"`
	DisplayName string `json:"displayName" bson:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty" bson:"avatarUrl,omitempty"`
}

// LastMessage is the summary projection kept on the conversation so the
// list screen never has to load messages.
type LastMessage struct {
	Text      string    `json:"text" bson:"text"`
	SenderID  string    `json:"senderId" bson:"senderId"`
	Kind      string    `json:"kind" bson:"kind"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Conversation is the persistent two-party chat thread aggregate.
type Conversation struct {
	ID              string         `json:"id" bson:"_id"`
	Participants    []string       `json:"participants" bson:"participants"`
	ParticipantInfo []Participant  `json:"participantInfo" bson:"participantInfo"`
	LastMessage     *LastMessage   `json:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	Unread          map[string]int `json:"unread" bson:"unread"`
	CreatedAt       time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// ConversationIDFor returns the deterministic ID for an unordered
// participant pair.
func ConversationIDFor(participantA, participantB string) string {
	a, b := participantA, participantB
	if b < a {
		a, b = b, a
	}
	return uuid.NewSHA1(conversationNamespace, []byte(a+"\x00"+b)).String()
}

// NewConversation builds a conversation for the two participants,
// validating the pair and capturing their profile snapshots.
func NewConversation(a, b Participant) (*Conversation, error) {
	if a.ID == "" || b.ID == "" {
		return nil, utils.NewValidationError("both participant IDs are required")
	}
	if a.ID == b.ID {
		return nil, utils.NewValidationError("participants must be distinct")
	}

	participants := []string{a.ID, b.ID}
	sort.Strings(participants)

	info := []Participant{a, b}
	if participants[0] != a.ID {
		info = []Participant{b, a}
	}

	now := time.Now().UTC()
	return &Conversation{
		ID:              ConversationIDFor(a.ID, b.ID),
		Participants:    participants,
		ParticipantInfo: info,
		Unread:          map[string]int{a.ID: 0, b.ID: 0},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// HasParticipant reports whether the user is one of the two parties.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant ID except the given one.
func (c *Conversation) OtherParticipants(userID string) []string {
	var others []string
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// UnreadFor returns the unread counter for a participant.
func (c *Conversation) UnreadFor(userID string) int {
	return c.Unread[userID]
}
