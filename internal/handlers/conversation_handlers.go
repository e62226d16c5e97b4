package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"caretalk/internal/models"
	"caretalk/internal/utils"

	"github.com/gorilla/mux"
)

// ResolveConversationRequest carries both participant snapshots so the
// conversation document can be created with display info on first contact.
type ResolveConversationRequest struct {
	ParticipantA models.Participant `json:"participantA"`
	ParticipantB models.Participant `json:"participantB"`
}

// ConversationView is a Conversation annotated with per-participant
// presence, as returned by the list endpoint.
type ConversationView struct {
	models.Conversation
	Online map[string]bool `json:"online,omitempty"`
}

// HandleResolveConversation finds or creates the one conversation between
// two participants. Calling it twice with the same pair, in either order,
// returns the same conversation.
func (s *Server) HandleResolveConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}

		var req ResolveConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, utils.NewValidationError("invalid request body"))
			return
		}
		if req.ParticipantA.ID != userID && req.ParticipantB.ID != userID {
			s.writeError(w, utils.NewForbiddenError("caller must be one of the participants"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		conv, err := s.Engine.Resolve(ctx, req.ParticipantA, req.ParticipantB)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, conv)
	}
}

// HandleListConversations returns the caller's conversations, most recently
// active first, annotated with the other participants' presence.
func (s *Server) HandleListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		convs, err := s.Engine.ConversationsFor(ctx, userID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, s.annotatePresence(ctx, userID, convs))
	}
}

// HandleGetConversation returns a single conversation the caller belongs to.
func (s *Server) HandleGetConversation() http.HandlerFunc {
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
		s.writeJSON(w, http.StatusOK, conv)
	}
}

// HandleMarkRead zeroes the caller's unread counter for a conversation.
func (s *Server) HandleMarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		conversationID := mux.Vars(r)["id"]

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		if err := s.Engine.MarkRead(ctx, conversationID, userID); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// annotatePresence decorates conversations with the online status of every
// participant other than the viewer. Presence lookup failures degrade to
// plain conversations rather than failing the request.
func (s *Server) annotatePresence(ctx context.Context, viewerID string, convs []models.Conversation) []ConversationView {
	others := make(map[string]struct{})
	for i := range convs {
		for _, id := range convs[i].OtherParticipants(viewerID) {
			others[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(others))
	for id := range others {
		ids = append(ids, id)
	}

	var online map[string]bool
	if s.Presence != nil && len(ids) > 0 {
		var err error
		online, err = s.Presence.OnlineSet(ctx, ids)
		if err != nil {
			online = nil
		}
	}

	views := make([]ConversationView, len(convs))
	for i := range convs {
		view := ConversationView{Conversation: convs[i]}
		if online != nil {
			view.Online = make(map[string]bool)
			for _, id := range convs[i].OtherParticipants(viewerID) {
				view.Online[id] = online[id]
			}
		}
		views[i] = view
	}
	return views
}
