package database

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"caretalk/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const uploadChunkSize = 32 * 1024

// UploadRequest describes one attachment upload into the object store.
type UploadRequest struct {
	ConversationID string
	UploaderID     string
	FileName       string
	MimeType       string
	// Size is the total byte count when known; with an unknown size only
	// the terminal 1.0 progress is reported.
	Size int64
	Body io.Reader
}

// progressTracker turns cumulative byte counts into the monotonically
// non-decreasing fraction reported to the caller. Intermediate reports
// stay strictly below 1.0; finish emits 1.0 exactly once, and nothing is
// reported after a failure.
type progressTracker struct {
	total    int64
	written  int64
	last     float64
	finished bool
	report   func(float64)
}

func newProgressTracker(total int64, report func(float64)) *progressTracker {
	return &progressTracker{total: total, report: report}
}

func (p *progressTracker) add(n int) {
	p.written += int64(n)
	if p.report == nil || p.finished || p.total <= 0 {
		return
	}
	fraction := float64(p.written) / float64(p.total)
	if fraction >= 1 {
		// The final 1.0 belongs to finish, after the store confirms.
		return
	}
	if fraction > p.last {
		p.last = fraction
		p.report(fraction)
	}
}

func (p *progressTracker) finish() {
	if p.report == nil || p.finished {
		return
	}
	p.finished = true
	p.report(1.0)
}

// UploadAttachment streams the request body into the attachment bucket
// under a conversation-scoped key and returns the stable download URL.
// Cancellation aborts the stream; partially transferred chunks may be
// left behind, which is an accepted leak cleaned up out of band.
func (m *MongoDB) UploadAttachment(ctx context.Context, req UploadRequest, onProgress func(float64)) (string, error) {
	key := attachmentKey(req.ConversationID, req.UploaderID, req.FileName)
	fileID := primitive.NewObjectID()

	opts := options.GridFSUpload().SetMetadata(bson.M{
		"conversationId": req.ConversationID,
		"uploaderId":     req.UploaderID,
		"fileName":       req.FileName,
		"contentType":    req.MimeType,
	})
	stream, err := m.Attachments.OpenUploadStreamWithID(fileID, key, opts)
	if err != nil {
		return "", utils.NewConnectivityError("upload", err)
	}

	tracker := newProgressTracker(req.Size, onProgress)
	buf := make([]byte, uploadChunkSize)

	for {
		if ctx.Err() != nil {
			stream.Abort()
			return "", utils.NewConnectivityError("upload", ctx.Err())
		}

		n, readErr := req.Body.Read(buf)
		if n > 0 {
			if _, writeErr := stream.Write(buf[:n]); writeErr != nil {
				stream.Abort()
				return "", classifyStoreError(writeErr)
			}
			tracker.add(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			stream.Abort()
			return "", utils.NewConnectivityError("upload", readErr)
		}
	}

	if err := stream.Close(); err != nil {
		return "", classifyStoreError(err)
	}

	tracker.finish()
	return fmt.Sprintf("%s/attachments/%s", m.baseURL, fileID.Hex()), nil
}

// OpenAttachment opens a download stream for a stored attachment and
// returns it with the file's metadata.
func (m *MongoDB) OpenAttachment(fileID string) (*gridfs.DownloadStream, error) {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, utils.NewValidationError("invalid attachment ID: " + fileID)
	}

	stream, err := m.Attachments.OpenDownloadStream(oid)
	if err == gridfs.ErrFileNotFound {
		return nil, utils.NewNotFoundError("attachment", fileID)
	}
	if err != nil {
		return nil, utils.NewConnectivityError("downloadAttachment", err)
	}
	return stream, nil
}

// DeleteAttachment removes a stored attachment.
func (m *MongoDB) DeleteAttachment(fileID string) error {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return utils.NewValidationError("invalid attachment ID: " + fileID)
	}
	if err := m.Attachments.Delete(oid); err != nil {
		return utils.NewConnectivityError("deleteAttachment", err)
	}
	return nil
}

// attachmentKey scopes uploads under the conversation so a conversation's
// files can be cleaned up in bulk, and mixes in uploader and timestamp to
// keep concurrent uploads by the same user from colliding.
func attachmentKey(conversationID, uploaderID, fileName string) string {
	ext := path.Ext(fileName)
	return fmt.Sprintf("chat_files/%s/%s_%d%s", conversationID, uploaderID, time.Now().UnixMilli(), ext)
}

// classifyStoreError separates size/quota rejections from generic
// connectivity failures so the caller can show an actionable message.
func classifyStoreError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "quota") || strings.Contains(msg, "space") || strings.Contains(msg, "too large") {
		return utils.NewQuotaError("object store rejected upload", err)
	}
	return utils.NewConnectivityError("upload", err)
}
