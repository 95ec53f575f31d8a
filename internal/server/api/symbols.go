package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/yubimoji/internal/observe"
	"github.com/ayusman/yubimoji/internal/store"
)

// SymbolHandler serves /api/symbols and /api/symbols/{id}. Requests for
// /api/symbols/{id}/samples go to the samples handler.
type SymbolHandler struct {
	store    *store.Store
	reloader Reloader
	samples  *SamplesHandler
}

// NewSymbolHandler creates a SymbolHandler. reloader may be nil.
func NewSymbolHandler(s *store.Store, reloader Reloader, samples *SamplesHandler) *SymbolHandler {
	return &SymbolHandler{store: s, reloader: reloader, samples: samples}
}

type symbolRequest struct {
	ShapeID   *int    `json:"shapeId"`
	Label     string  `json:"label"`
	Tolerance float64 `json:"tolerance"`
}

type symbolResponse struct {
	ID        string  `json:"id"`
	ShapeID   int     `json:"shapeId"`
	Label     string  `json:"label"`
	Tolerance float64 `json:"tolerance"`
	Samples   int     `json:"samples"`
	Trained   bool    `json:"trained"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

type listSymbolsResponse struct {
	Symbols []symbolResponse `json:"symbols"`
}

func toSymbolResponse(s *store.Symbol) symbolResponse {
	return symbolResponse{
		ID:        s.ID,
		ShapeID:   s.ShapeID,
		Label:     s.Label,
		Tolerance: s.Tolerance,
		Samples:   s.Samples,
		Trained:   len(s.Template) > 0,
		CreatedAt: s.CreatedAt.Format(timeFormat),
		UpdatedAt: s.UpdatedAt.Format(timeFormat),
	}
}

// ServeHTTP routes collection, item and samples requests.
func (h *SymbolHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/symbols")

	switch {
	case len(parts) == 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, parts[0])
		case http.MethodPut:
			h.update(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, r, parts[0])
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 2 && parts[1] == "samples" && h.samples != nil:
		h.samples.serve(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SymbolHandler) list(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.Symbols().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list symbols")
		return
	}

	response := listSymbolsResponse{Symbols: make([]symbolResponse, 0, len(symbols))}
	for _, s := range symbols {
		response.Symbols = append(response.Symbols, toSymbolResponse(s))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *SymbolHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sym, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSymbolResponse(sym))
}

func (h *SymbolHandler) create(w http.ResponseWriter, r *http.Request) {
	var req symbolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ShapeID == nil || *req.ShapeID < 0 {
		writeError(w, http.StatusBadRequest, "shapeId must be a non-negative integer")
		return
	}
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "Label is required")
		return
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "Tolerance must not be negative")
		return
	}

	if _, err := h.store.Symbols().GetByShapeID(*req.ShapeID); err == nil {
		writeError(w, http.StatusConflict, "Shape id already has a symbol")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to check shape id")
		return
	}

	sym := &store.Symbol{
		ID:        uuid.New().String(),
		ShapeID:   *req.ShapeID,
		Label:     req.Label,
		Tolerance: req.Tolerance,
	}
	if err := h.store.Symbols().Create(sym); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create symbol")
		return
	}

	h.reload(r)
	writeJSON(w, http.StatusCreated, toSymbolResponse(sym))
}

func (h *SymbolHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	sym, ok := h.lookup(w, id)
	if !ok {
		return
	}

	var req symbolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ShapeID != nil && *req.ShapeID != sym.ShapeID {
		writeError(w, http.StatusBadRequest, "shapeId cannot be changed")
		return
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "Tolerance must not be negative")
		return
	}
	if req.Label != "" {
		sym.Label = req.Label
	}
	if req.Tolerance != 0 {
		sym.Tolerance = req.Tolerance
	}

	if err := h.store.Symbols().Update(sym); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update symbol")
		return
	}

	h.reload(r)
	writeJSON(w, http.StatusOK, toSymbolResponse(sym))
}

func (h *SymbolHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Symbols().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Symbol not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete symbol")
		return
	}

	h.reload(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SymbolHandler) lookup(w http.ResponseWriter, id string) (*store.Symbol, bool) {
	sym, err := h.store.Symbols().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Symbol not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get symbol")
		return nil, false
	}
	return sym, true
}

// reload applies stored changes to the running engine. The edit itself has
// already succeeded, so a failure is only logged.
func (h *SymbolHandler) reload(r *http.Request) {
	reload(r, h.reloader)
}

func reload(r *http.Request, reloader Reloader) {
	if reloader == nil {
		return
	}
	if err := reloader.Reload(r.Context()); err != nil {
		observe.Logger(r.Context()).Warn("reload after edit failed", "path", r.URL.Path, "err", err)
	}
}
