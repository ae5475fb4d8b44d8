package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nicozefrench/diveteacher/internal/validator"
)

// uploadResponse acknowledges an accepted document.
type uploadResponse struct {
	UploadID      string `json:"upload_id"`
	Filename      string `json:"filename"`
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	GroupID       string `json:"group_id,omitempty"`
}

// errTooLarge marks a streamed write that hit the size cap.
var errTooLarge = errors.New("upload too large")

// handleUpload accepts a multipart document, checks extension and size
// before the body is fully read, saves it to the uploads directory,
// and enqueues it for processing.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	v := validator.New(s.uploads.Extensions, s.uploads.MaxSizeMB)

	// Cap the whole request body; multipart overhead gets a small
	// allowance on top of the document limit.
	r.Body = http.MaxBytesReader(w, r.Body, v.MaxBytes()+1<<20)

	reader, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}

	part, groupID, err := nextFilePart(reader)
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file in upload")
		return
	}
	defer part.Close()

	filename := filepath.Base(part.FileName())
	if filename == "" || filename == "." {
		respondError(w, http.StatusBadRequest, "upload has no filename")
		return
	}

	if err := v.ValidateName(filename); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	uploadID := uuid.NewString()
	path := filepath.Join(s.uploads.Dir, fmt.Sprintf("%s_%s", uploadID, filename))

	if err := os.MkdirAll(s.uploads.Dir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to prepare upload directory")
		return
	}

	written, err := saveLimited(path, part, v.MaxBytes())
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, errTooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d MB limit", s.uploads.MaxSizeMB))
			return
		}
		s.logger.Error("failed to save upload", "filename", filename, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	// A group_id field sent after the file only becomes readable once
	// the file part has been consumed.
	if g := trailingGroupID(reader); g != "" {
		groupID = g
	}

	s.registry.Register(uploadID, filename)
	position := s.queue.Enqueue(uploadID, path, filename, groupID)
	if position < 0 {
		_ = os.Remove(path)
		s.registry.Delete(uploadID)
		respondError(w, http.StatusServiceUnavailable, "service is shutting down")
		return
	}

	s.logger.Info("document uploaded",
		"upload_id", uploadID,
		"filename", filename,
		"bytes", written,
		"group_id", groupID,
		"queue_position", position)

	respondJSON(w, http.StatusOK, uploadResponse{
		UploadID:      uploadID,
		Filename:      filename,
		Status:        "queued",
		QueuePosition: position,
		GroupID:       groupID,
	})
}

// nextFilePart advances to the first multipart part carrying a file,
// capturing a group_id form field when it precedes the file.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, string, error) {
	var groupID string
	for {
		part, err := reader.NextPart()
		if err != nil {
			return nil, "", err
		}
		if part.FileName() != "" {
			return part, groupID, nil
		}
		if part.FormName() == "group_id" {
			groupID = readFormValue(part)
			continue
		}
		part.Close()
	}
}

// trailingGroupID scans the parts after the file for a group_id field.
func trailingGroupID(reader *multipart.Reader) string {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return ""
		}
		if part.FileName() == "" && part.FormName() == "group_id" {
			return readFormValue(part)
		}
		part.Close()
	}
}

// readFormValue reads a small form field's value and closes the part.
func readFormValue(part *multipart.Part) string {
	b, _ := io.ReadAll(io.LimitReader(part, 1024))
	part.Close()
	return strings.TrimSpace(string(b))
}

// saveLimited streams the part to path, failing with errTooLarge as
// soon as the limit is crossed rather than after the full body is
// read.
func saveLimited(path string, part io.Reader, limit int64) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	written, err := io.Copy(f, io.LimitReader(part, limit+1))
	if err != nil {
		return written, err
	}
	if written > limit {
		return written, errTooLarge
	}
	return written, nil
}
