package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/yubimoji/internal/classifier"
	"github.com/ayusman/yubimoji/internal/store"
)

// SamplesHandler serves /api/symbols/{id}/samples. Posting samples retrains
// the symbol template from every stored sample.
type SamplesHandler struct {
	store    *store.Store
	trainer  *classifier.Trainer
	reloader Reloader
}

// NewSamplesHandler creates a SamplesHandler. reloader may be nil.
func NewSamplesHandler(s *store.Store, trainer *classifier.Trainer, reloader Reloader) *SamplesHandler {
	return &SamplesHandler{store: s, trainer: trainer, reloader: reloader}
}

type createSamplesRequest struct {
	Samples []json.RawMessage `json:"samples"`
}

type sampleResponse struct {
	ID          int64           `json:"id"`
	SymbolID    string          `json:"symbolId"`
	SampleIndex int             `json:"sampleIndex"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"createdAt"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

type trainResponse struct {
	Samples  int     `json:"samples"`
	Features int     `json:"features"`
	Spread   float64 `json:"spread"`
}

func (h *SamplesHandler) serve(w http.ResponseWriter, r *http.Request, symbolID string) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r, symbolID)
	case http.MethodPost:
		h.create(w, r, symbolID)
	case http.MethodDelete:
		h.clear(w, r, symbolID)
	default:
		methodNotAllowed(w)
	}
}

func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request, symbolID string) {
	if _, err := h.store.Symbols().GetByID(symbolID); err != nil {
		symbolError(w, err)
		return
	}

	samples, err := h.store.Samples().GetBySymbolID(symbolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{Samples: make([]sampleResponse, 0, len(samples))}
	for _, s := range samples {
		response.Samples = append(response.Samples, sampleResponse{
			ID:          s.ID,
			SymbolID:    s.SymbolID,
			SampleIndex: s.SampleIndex,
			Data:        s.Data,
			CreatedAt:   s.CreatedAt.Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request, symbolID string) {
	sym, err := h.store.Symbols().GetByID(symbolID)
	if err != nil {
		symbolError(w, err)
		return
	}

	var req createSamplesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}
	// Reject samples the trainer cannot use before anything is stored.
	if _, err := h.trainer.Train(req.Samples); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sample: "+err.Error())
		return
	}

	total, err := h.store.Samples().Create(symbolID, req.Samples)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save samples")
		return
	}

	stored, err := h.store.Samples().GetBySymbolID(symbolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load samples")
		return
	}
	data := make([]json.RawMessage, len(stored))
	for i, s := range stored {
		data[i] = s.Data
	}
	trained, err := h.trainer.Train(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to train symbol")
		return
	}

	sym.Samples = total
	sym.Template = trained.Features
	if err := h.store.Symbols().Update(sym); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save template")
		return
	}

	reload(r, h.reloader)
	writeJSON(w, http.StatusCreated, trainResponse{
		Samples:  total,
		Features: len(trained.Features),
		Spread:   trained.Spread,
	})
}

func (h *SamplesHandler) clear(w http.ResponseWriter, r *http.Request, symbolID string) {
	if _, err := h.store.Symbols().GetByID(symbolID); err != nil {
		symbolError(w, err)
		return
	}
	if err := h.store.Samples().DeleteBySymbolID(symbolID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete samples")
		return
	}

	reload(r, h.reloader)
	w.WriteHeader(http.StatusNoContent)
}

func symbolError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Symbol not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to get symbol")
}
