package server

import (
	"crypto/subtle"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/reacture/engine/internal/api"
)

// handleUpload stores a dataset sent by api.Client.Upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	if s.cfg.Secret != "" && subtle.ConstantTimeCompare([]byte(r.FormValue("secret")), []byte(s.cfg.Secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "Invalid secret")
		return
	}

	id := r.FormValue("session_id")
	if !idPattern.MatchString(id) {
		writeError(w, http.StatusBadRequest, "Invalid session_id")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	for _, fh := range files {
		if !allowedUpload(filepath.Base(fh.Filename)) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("File not allowed: %s", fh.Filename))
			return
		}
	}

	dir := s.datasetDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("Failed to create dataset directory", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to store dataset")
		return
	}
	for _, fh := range files {
		if err := saveUpload(dir, fh); err != nil {
			s.logger.Error("Failed to store uploaded file", "session_id", id, "file", fh.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to store dataset")
			return
		}
	}

	s.logger.Info("Dataset uploaded",
		"session_id", id,
		"player_id", r.FormValue("player_id"),
		"environment", r.FormValue("environment"),
		"final_score", r.FormValue("final_score"),
		"tag", r.FormValue("tag"),
		"files", len(files))
	writeJSON(w, http.StatusOK, api.UploadResponse{Success: true, SessionID: id, Files: len(files)})
}

func saveUpload(dir string, fh *multipart.FileHeader) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, filepath.Base(fh.Filename)))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
