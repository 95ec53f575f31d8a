package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/observe"
)

// maxFrameBytes bounds a posted frame; two hands of 21 keypoints fit easily.
const maxFrameBytes = 1 << 20

// FrameHandler serves POST /api/frames.
type FrameHandler struct {
	session Session
}

// NewFrameHandler creates a FrameHandler over session.
func NewFrameHandler(s Session) *FrameHandler {
	return &FrameHandler{session: s}
}

// ServeHTTP processes one frame and returns the session result.
func (h *FrameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFrameBytes)
	var frame engine.Frame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	result, err := h.session.ProcessFrame(r.Context(), observe.SourceAPI, frame)
	if err != nil {
		var inputErr *engine.InputError
		if errors.As(err, &inputErr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "input"})
			return
		}
		observe.Logger(r.Context()).Error("frame processing failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to process frame", Kind: "processing"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SessionHandler serves GET and DELETE /api/session.
type SessionHandler struct {
	session Session
}

// NewSessionHandler creates a SessionHandler over session.
func NewSessionHandler(s Session) *SessionHandler {
	return &SessionHandler{session: s}
}

// ServeHTTP returns the current state on GET and starts a new session on
// DELETE.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.session.Snapshot())
	case http.MethodDelete:
		result, err := h.session.Reset(r.Context())
		if err != nil {
			observe.Logger(r.Context()).Error("session reset failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to reset session")
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		methodNotAllowed(w)
	}
}
