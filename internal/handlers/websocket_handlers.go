package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"caretalk/internal/models"
	"caretalk/internal/websocket"

	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: check against config.AllowedOrigins once clients send a
		// stable Origin header
		return true
	},
}

// clientFrame is an inbound frame on a chat socket.
type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Inbound frame types accepted on a chat socket.
const (
	frameSendText = "message.send"
	frameMarkRead = "read"
)

// authenticateSocket validates the JWT passed as a query parameter.
// Browsers cannot set headers on websocket dials, so the token rides the URL.
func (s *Server) authenticateSocket(w http.ResponseWriter, r *http.Request) (string, bool) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return "", false
	}
	claims, err := s.Auth.ValidateToken(tokenString)
	if err != nil {
		log.Printf("WebSocket connection failed: Invalid token: %v", err)
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return "", false
	}
	if claims.UserID == "" {
		http.Error(w, "Invalid user ID in token", http.StatusUnauthorized)
		return "", false
	}
	return claims.UserID, true
}

// HandleUserFeed upgrades to a per-user feed socket. The client receives
// its conversation list immediately and again whenever any of its
// conversations changes, plus message.new and upload.progress events
// routed through the hub. Pongs double as presence heartbeats.
func (s *Server) HandleUserFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.authenticateSocket(w, r)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for User %s: %v", userID, err)
			return
		}
		log.Printf("User feed connected for User %s", userID)

		client := &websocket.Client{
			Hub:    s.Hub,
			UserID: userID,
			Conn:   conn,
			Send:   make(chan []byte, 256),
		}
		client.Hub.Register <- client

		heartbeat := func() {
			if s.Presence == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.RequestTimeout)
			defer cancel()
			if err := s.Presence.Heartbeat(ctx, userID); err != nil {
				log.Printf("Presence heartbeat failed for User %s: %v", userID, err)
			}
		}
		heartbeat()
		client.OnPong = heartbeat

		sub := s.MongoDB.SubscribeConversationsFor(userID,
			func(convs []models.Conversation) {
				ctx, cancel := context.WithTimeout(context.Background(), s.RequestTimeout)
				defer cancel()
				views := s.annotatePresence(ctx, userID, convs)
				if payload := marshalEvent(EventConversations, views); payload != nil {
					s.Hub.SendDirectMessage(userID, payload)
				}
			},
			func(err error) {
				log.Printf("Conversation feed error for User %s: %v", userID, err)
				if payload := marshalEvent(EventError, map[string]string{"error": err.Error()}); payload != nil {
					s.Hub.SendDirectMessage(userID, payload)
				}
			},
		)

		client.OnClose = func() {
			sub.Cancel()
			if s.Presence != nil {
				ctx, cancel := context.WithTimeout(context.Background(), s.RequestTimeout)
				defer cancel()
				if err := s.Presence.Offline(ctx, userID); err != nil {
					log.Printf("Presence offline failed for User %s: %v", userID, err)
				}
			}
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

// HandleChatSocket upgrades to a single-conversation chat socket. Opening
// the socket marks the conversation read and starts the message feed;
// text frames sent by the client become messages.
func (s *Server) HandleChatSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.authenticateSocket(w, r)
		if !ok {
			return
		}
		conversationID := mux.Vars(r)["id"]

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		conv, err := s.Engine.Conversation(ctx, conversationID)
		cancel()
		if err != nil {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		if !conv.HasParticipant(userID) {
			http.Error(w, "Not a participant of this conversation", http.StatusForbidden)
			return
		}
		viewer := models.Participant{ID: userID}
		for _, p := range conv.ParticipantInfo {
			if p.ID == userID {
				viewer = p
				break
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for User %s: %v", userID, err)
			return
		}
		log.Printf("Chat socket connected for User %s on conversation %s", userID, conversationID)

		client := &websocket.Client{
			Hub:    s.Hub,
			UserID: userID,
			Conn:   conn,
			Send:   make(chan []byte, 256),
		}

		pushEvent := func(eventType string, data interface{}) {
			payload := marshalEvent(eventType, data)
			if payload == nil {
				return
			}
			select {
			case client.Send <- payload:
			default:
				log.Printf("Chat socket send buffer full for User %s, dropping %s event", userID, eventType)
			}
		}

		openCtx, openCancel := context.WithTimeout(context.Background(), s.RequestTimeout)
		session, err := s.Controller.Open(openCtx, conversationID, viewer,
			func(msgs []models.Message) {
				pushEvent(EventMessages, msgs)
			},
			func(err error) {
				log.Printf("Message feed error for conversation %s: %v", conversationID, err)
				pushEvent(EventError, map[string]string{"error": err.Error()})
			},
		)
		openCancel()
		if err != nil {
			log.Printf("Failed to open chat session for User %s: %v", userID, err)
			conn.Close()
			return
		}

		// Register only once the session is live, so a failed open never
		// leaves a dead client behind in the hub.
		client.Hub.Register <- client

		client.OnMessage = func(payload []byte) {
			var frame clientFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				pushEvent(EventError, map[string]string{"error": "invalid frame"})
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), s.RequestTimeout)
			defer cancel()

			switch frame.Type {
			case frameSendText:
				if _, err := session.SendText(ctx, frame.Text); err != nil {
					pushEvent(EventError, map[string]string{"error": err.Error()})
				}
			case frameMarkRead:
				if err := session.MarkRead(ctx); err != nil {
					pushEvent(EventError, map[string]string{"error": err.Error()})
				}
			default:
				pushEvent(EventError, map[string]string{"error": "unknown frame type"})
			}
		}
		client.OnClose = session.Close

		go client.WritePump()
		go client.ReadPump()
	}
}
