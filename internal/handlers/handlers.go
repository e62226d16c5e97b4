package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"caretalk/internal/chat"
	"caretalk/internal/database"
	"caretalk/internal/engine"
	"caretalk/internal/middleware"
	"caretalk/internal/models"
	"caretalk/internal/presence"
	"caretalk/internal/utils"
	"caretalk/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Engine         *engine.Engine
	Controller     *chat.Controller
	Hub            *websocket.Hub
	Presence       *presence.Tracker
	MongoDB        *database.MongoDB
	Metrics        *utils.MetricsCollector
	Auth           *middleware.Auth
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components
func NewServer(
	system *actor.ActorSystem,
	eng *engine.Engine,
	controller *chat.Controller,
	hub *websocket.Hub,
	tracker *presence.Tracker,
	mongodb *database.MongoDB,
	metrics *utils.MetricsCollector,
	auth *middleware.Auth,
) *Server {
	return &Server{
		System:         system,
		Engine:         eng,
		Controller:     controller,
		Hub:            hub,
		Presence:       tracker,
		MongoDB:        mongodb,
		Metrics:        metrics,
		Auth:           auth,
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
	}
}

// Event is the envelope for everything pushed over a live connection.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Event types pushed to clients.
const (
	EventConversations  = "conversations"
	EventMessages       = "messages"
	EventMessageNew     = "message.new"
	EventUploadProgress = "upload.progress"
	EventError          = "error"
)

func marshalEvent(eventType string, data interface{}) []byte {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", eventType, err)
		return nil
	}
	return payload
}

// HubNotifier pushes freshly appended messages to recipients' live
// connections, satisfying the message actor's notifier seam.
type HubNotifier struct {
	Hub *websocket.Hub
}

func (n HubNotifier) NotifyNewMessage(recipientID string, msg *models.Message) {
	if payload := marshalEvent(EventMessageNew, msg); payload != nil {
		n.Hub.SendDirectMessage(recipientID, payload)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeError maps an error to its HTTP status, keeping the taxonomy code
// in the body so clients can branch on it.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.Metrics.IncrementErrors()

	code := "INTERNAL"
	message := err.Error()
	status := http.StatusInternalServerError
	if appErr, ok := err.(*utils.AppError); ok {
		code = appErr.Code
		message = appErr.Message
		status = utils.AppErrorToHTTPStatus(appErr.Code)
	}

	s.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// requireUser extracts the authenticated user from the request context.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		s.writeError(w, utils.NewUnauthorizedError("missing authenticated user"))
		return "", false
	}
	return userID, true
}
