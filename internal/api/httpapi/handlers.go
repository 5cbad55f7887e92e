package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stt-comparison-service/internal/audioconv"
	"stt-comparison-service/internal/observability/logging"
	"stt-comparison-service/internal/service/batch"
	"stt-comparison-service/internal/service/stt/deepgram"
	"stt-comparison-service/internal/upload"
)

// KeyMinter issues short-lived browser keys for the reference provider.
type KeyMinter interface {
	CreateTemporaryKey(ctx context.Context) (*deepgram.TemporaryKey, error)
}

// API holds the handlers' dependencies.
type API struct {
	store    *upload.Store
	scorer   *batch.Scorer
	keys     KeyMinter
	maxFiles int

	// convert transcodes an uploaded file to 16kHz mono PCM16 WAV.
	// Overridable in tests to avoid the ffmpeg dependency.
	convert func(ctx context.Context, path string) ([]byte, error)
}

// NewAPI creates the REST API. keys may be nil when the reference
// provider is not configured.
func NewAPI(store *upload.Store, scorer *batch.Scorer, keys KeyMinter, maxFiles int) *API {
	return &API{
		store:    store,
		scorer:   scorer,
		keys:     keys,
		maxFiles: maxFiles,
		convert:  audioconv.ConvertToWAV,
	}
}

// handleUpload accepts up to maxFiles audio or video files as the
// multipart field "files".
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}
	if len(headers) > a.maxFiles {
		writeError(w, http.StatusBadRequest, "too many files")
		return
	}

	var saved []upload.StoredFile
	for _, header := range headers {
		src, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		file, err := a.store.Save(header.Filename, header.Header.Get("Content-Type"), src)
		src.Close()
		switch {
		case errors.Is(err, upload.ErrUnsupportedType):
			writeError(w, http.StatusBadRequest, "only audio and video files are accepted")
			return
		case errors.Is(err, upload.ErrTooLarge):
			writeError(w, http.StatusBadRequest, "file exceeds size limit")
			return
		case err != nil:
			logger := logging.WithComponent("httpapi")
			logger.Error().Err(err).Msg("Upload save failed")
			writeError(w, http.StatusInternalServerError, "failed to store file")
			return
		}
		saved = append(saved, file)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"files":   saved,
	})
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")
	if err := a.store.Delete(fileID); err != nil {
		if errors.Is(err, upload.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		logger := logging.WithComponent("httpapi")
		logger.Error().Err(err).Msg("Delete failed")
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type processRequest struct {
	FileID    string `json:"fileId"`
	Reference string `json:"referenceTranscript"`
}

// handleProcessAudio converts an uploaded file to PCM16 WAV, sends it
// to every batch provider and scores each transcript against the
// reference text when one was supplied.
func (a *API) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileID == "" {
		writeError(w, http.StatusBadRequest, "fileId is required")
		return
	}

	file, err := a.store.Get(req.FileID)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	wavBytes, err := a.convert(r.Context(), file.Path)
	if err != nil {
		logger := logging.WithComponent("httpapi")
		logger.Error().Err(err).Str("fileId", req.FileID).Msg("Audio conversion failed")
		writeError(w, http.StatusInternalServerError, "audio conversion failed")
		return
	}

	results := a.scorer.TranscribeFile(r.Context(), wavBytes, req.Reference)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"fileId":  req.FileID,
		"results": results,
	})
}

// handleKey mints a short-lived Deepgram key for direct browser use.
func (a *API) handleKey(w http.ResponseWriter, r *http.Request) {
	if a.keys == nil {
		writeError(w, http.StatusServiceUnavailable, "reference provider not configured")
		return
	}
	key, err := a.keys.CreateTemporaryKey(r.Context())
	if err != nil {
		logger := logging.WithComponent("httpapi")
		logger.Error().Err(err).Msg("Temporary key request failed")
		writeError(w, http.StatusBadGateway, "failed to create temporary key")
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
