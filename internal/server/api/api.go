// Package api provides the HTTP handlers of the yubimoji JSON API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayusman/yubimoji/internal/engine"
)

// Session is the frame processing surface driven by the API.
type Session interface {
	ProcessFrame(ctx context.Context, source string, f engine.Frame) (engine.Result, error)
	Snapshot() engine.Result
	Reset(ctx context.Context) (engine.Result, error)
}

// Reloader rebuilds the engine tables and classifier templates after the
// stored symbols or rules change.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloadFunc adapts a function to Reloader.
type ReloadFunc func(ctx context.Context) error

// Reload calls f(ctx).
func (f ReloadFunc) Reload(ctx context.Context) error { return f(ctx) }

const timeFormat = "2006-01-02T15:04:05Z07:00"

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// splitPath returns the path segments after prefix.
func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
