package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"

	"caretalk/internal/chat"
	"caretalk/internal/models"
	"caretalk/internal/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
)

// HandleUploadAttachment accepts a multipart upload, stores the file and
// appends the file message in one request. Upload progress is streamed to
// the caller's live connection as upload.progress events.
func (s *Server) HandleUploadAttachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		conversationID := mux.Vars(r)["id"]

		// Bound the multipart memory footprint; the file part itself is
		// streamed, not buffered.
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			s.writeError(w, utils.NewValidationError("invalid multipart request"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, utils.NewValidationError("missing file part"))
			return
		}
		defer file.Close()

		sender := models.Participant{
			ID:          userID,
			DisplayName: r.FormValue("displayName"),
			AvatarURL:   r.FormValue("avatarUrl"),
		}

		upload := chat.FileUpload{
			FileName: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Size:     header.Size,
			Body:     file,
		}

		onProgress := func(fraction float64) {
			payload := marshalEvent(EventUploadProgress, map[string]interface{}{
				"conversationId": conversationID,
				"fileName":       header.Filename,
				"fraction":       fraction,
			})
			if payload != nil {
				s.Hub.SendDirectMessage(userID, payload)
			}
		}

		// Uploads get a longer leash than plain actor requests.
		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout*6)
		defer cancel()

		msg, err := s.Controller.SendFile(ctx, conversationID, sender, upload, onProgress)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, msg)
	}
}

// HandleDownloadAttachment streams a stored file back to the client. The
// route is unprotected so attachment URLs stay usable inside <img> tags
// and viewers that cannot attach headers.
func (s *Server) HandleDownloadAttachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()

		fileID := mux.Vars(r)["id"]

		stream, err := s.MongoDB.OpenAttachment(fileID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		defer stream.Close()

		gridFile := stream.GetFile()
		var meta struct {
			FileName    string `bson:"fileName"`
			ContentType string `bson:"contentType"`
		}
		if gridFile.Metadata != nil {
			if err := bson.Unmarshal(gridFile.Metadata, &meta); err != nil {
				log.Printf("Failed to decode attachment metadata for %s: %v", fileID, err)
			}
		}

		if meta.ContentType != "" {
			w.Header().Set("Content-Type", meta.ContentType)
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		if meta.FileName != "" {
			w.Header().Set("Content-Disposition", "inline; filename=\""+meta.FileName+"\"")
		}
		w.Header().Set("Content-Length", strconv.FormatInt(gridFile.Length, 10))

		if _, err := io.Copy(w, stream); err != nil {
			log.Printf("Failed to stream attachment %s: %v", fileID, err)
		}
	}
}
