package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"caretalk/internal/models"
	"caretalk/internal/utils"

	"github.com/gorilla/mux"
)

// SendMessageRequest is the REST body for appending a text message.
type SendMessageRequest struct {
	Sender models.Participant `json:"sender"`
	Text   string             `json:"text"`
}

// HandleListMessages returns a conversation's messages oldest first.
func (s *Server) HandleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		conversationID := mux.Vars(r)["id"]

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		conv, err := s.Engine.Conversation(ctx, conversationID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !conv.HasParticipant(userID) {
			s.writeError(w, utils.NewForbiddenError("not a participant of this conversation"))
			return
		}

		msgs, err := s.Engine.Messages(ctx, conversationID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, msgs)
	}
}

// HandleSendMessage appends a text message to a conversation.
func (s *Server) HandleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		conversationID := mux.Vars(r)["id"]

		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, utils.NewValidationError("invalid request body"))
			return
		}
		if req.Sender.ID == "" {
			req.Sender.ID = userID
		}
		if req.Sender.ID != userID {
			s.writeError(w, utils.NewForbiddenError("sender must be the authenticated user"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		msg, err := s.Controller.SendText(ctx, conversationID, req.Sender, req.Text)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, msg)
	}
}
