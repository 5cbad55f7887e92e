// Package httpapi exposes the REST surface of the service: file
// uploads, batch transcription scoring, Deepgram browser keys and the
// static comparison UI.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps wires the router to the service components.
type Deps struct {
	API       *API
	WebSocket http.Handler
	PublicDir string
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Post("/upload", deps.API.handleUpload)
	r.Delete("/upload/{fileId}", deps.API.handleDelete)
	r.Post("/process-audio", deps.API.handleProcessAudio)
	r.Get("/key", deps.API.handleKey)

	if deps.WebSocket != nil {
		r.Handle("/ws", deps.WebSocket)
	}

	// Comparison UI
	if deps.PublicDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(deps.PublicDir)))
	}

	return r
}
