package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"caretalk/internal/models"
	"caretalk/internal/utils"
	"caretalk/internal/websocket"

	"github.com/stretchr/testify/assert"
)

func TestHandleHealth(t *testing.T) {
	server := &Server{Metrics: utils.NewMetricsCollector()}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.HandleHealth().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status  string        `json:"status"`
		Metrics utils.Summary `json:"metrics"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
}

func TestHandleHealthRejectsNonGet(t *testing.T) {
	server := &Server{Metrics: utils.NewMetricsCollector()}

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()
	server.HandleHealth().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestWriteErrorMapsTaxonomy(t *testing.T) {
	server := &Server{Metrics: utils.NewMetricsCollector()}

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{utils.NewValidationError("bad input"), http.StatusBadRequest, utils.ErrValidation},
		{utils.NewNotFoundError("conversation", "conv-1"), http.StatusNotFound, utils.ErrNotFound},
		{utils.NewQuotaError("too big", nil), http.StatusRequestEntityTooLarge, utils.ErrQuota},
		{utils.NewForbiddenError("not yours"), http.StatusForbidden, utils.ErrForbidden},
		{assert.AnError, http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		server.writeError(w, tc.err)
		assert.Equal(t, tc.status, w.Code)

		var body map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body["code"])
	}

	assert.Equal(t, uint64(len(cases)), server.Metrics.GetSummary().Errors)
}

func TestHubNotifierDeliversEnvelope(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()

	client := &websocket.Client{Hub: hub, UserID: "pat-9", Send: make(chan []byte, 8)}
	hub.Register <- client
	assert.Eventually(t, func() bool {
		return hub.Connected("pat-9")
	}, time.Second, 10*time.Millisecond)

	notifier := HubNotifier{Hub: hub}
	notifier.NotifyNewMessage("pat-9", &models.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		Seq:            7,
		Text:           "hello",
		Kind:           models.KindText,
	})

	select {
	case payload := <-client.Send:
		var event struct {
			Type string         `json:"type"`
			Data models.Message `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, EventMessageNew, event.Type)
		assert.Equal(t, "msg-1", event.Data.ID)
		assert.Equal(t, int64(7), event.Data.Seq)
	case <-time.After(time.Second):
		t.Fatal("notification never reached the client")
	}
}
