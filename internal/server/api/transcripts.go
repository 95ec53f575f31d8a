package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ayusman/yubimoji/internal/store"
)

// defaultTranscriptLimit caps GET /api/transcripts without a limit.
const defaultTranscriptLimit = 50

// TranscriptHandler serves /api/transcripts and /api/transcripts/{id}.
type TranscriptHandler struct {
	store *store.Store
}

// NewTranscriptHandler creates a TranscriptHandler.
func NewTranscriptHandler(s *store.Store) *TranscriptHandler {
	return &TranscriptHandler{store: s}
}

type listTranscriptsResponse struct {
	Transcripts []*store.Transcript `json:"transcripts"`
}

// ServeHTTP routes transcript requests.
func (h *TranscriptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/transcripts")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		h.list(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.get(w, parts[0])
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.delete(w, parts[0])
	case len(parts) <= 1:
		methodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *TranscriptHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultTranscriptLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	transcripts, err := h.store.Transcripts().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transcripts")
		return
	}
	if transcripts == nil {
		transcripts = []*store.Transcript{}
	}
	writeJSON(w, http.StatusOK, listTranscriptsResponse{Transcripts: transcripts})
}

func (h *TranscriptHandler) get(w http.ResponseWriter, id string) {
	t, err := h.store.Transcripts().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transcript not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get transcript")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TranscriptHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Transcripts().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transcript not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete transcript")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
