package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/motion"
	"github.com/ayusman/yubimoji/internal/store"
)

// RuleHandler serves the stored modifier and merge rules:
//
//	GET    /api/rules
//	PUT    /api/rules/modifiers            {"base","modifier","result"}
//	DELETE /api/rules/modifiers?base=&modifier=
//	PUT    /api/rules/merges               {"last","next","result"}
//	DELETE /api/rules/merges?last=&next=
type RuleHandler struct {
	store    *store.Store
	reloader Reloader
}

// NewRuleHandler creates a RuleHandler. reloader may be nil.
func NewRuleHandler(s *store.Store, reloader Reloader) *RuleHandler {
	return &RuleHandler{store: s, reloader: reloader}
}

type rulesResponse struct {
	Modifiers []compose.ModifierRule `json:"modifiers"`
	Merges    []compose.MergeRule    `json:"merges"`
}

// ServeHTTP routes rule requests.
func (h *RuleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/rules")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		h.list(w)
	case len(parts) == 0:
		methodNotAllowed(w)
	case len(parts) == 1 && parts[0] == "modifiers":
		switch r.Method {
		case http.MethodPut:
			h.putModifier(w, r)
		case http.MethodDelete:
			h.deleteModifier(w, r)
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 1 && parts[0] == "merges":
		switch r.Method {
		case http.MethodPut:
			h.putMerge(w, r)
		case http.MethodDelete:
			h.deleteMerge(w, r)
		default:
			methodNotAllowed(w)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *RuleHandler) list(w http.ResponseWriter) {
	modifiers, err := h.store.Rules().ListModifiers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list modifier rules")
		return
	}
	merges, err := h.store.Rules().ListMerges()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list merge rules")
		return
	}
	if modifiers == nil {
		modifiers = []compose.ModifierRule{}
	}
	if merges == nil {
		merges = []compose.MergeRule{}
	}
	writeJSON(w, http.StatusOK, rulesResponse{Modifiers: modifiers, Merges: merges})
}

func (h *RuleHandler) putModifier(w http.ResponseWriter, r *http.Request) {
	var rule compose.ModifierRule
	if err := decodeJSON(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if _, err := compose.NewModifierTable([]compose.ModifierRule{rule}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Rules().PutModifier(rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save modifier rule")
		return
	}

	reload(r, h.reloader)
	writeJSON(w, http.StatusOK, rule)
}

func (h *RuleHandler) deleteModifier(w http.ResponseWriter, r *http.Request) {
	base, err := strconv.Atoi(r.URL.Query().Get("base"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "base must be an integer")
		return
	}
	mod, err := motion.ParseModifier(r.URL.Query().Get("modifier"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.deleted(w, r, h.store.Rules().DeleteModifier(base, mod))
}

func (h *RuleHandler) putMerge(w http.ResponseWriter, r *http.Request) {
	var rule compose.MergeRule
	if err := decodeJSON(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if rule.Last == "" || rule.Result == "" || rule.Next < 0 {
		writeError(w, http.StatusBadRequest, "last, next and result are required")
		return
	}
	if err := h.store.Rules().PutMerge(rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save merge rule")
		return
	}

	reload(r, h.reloader)
	writeJSON(w, http.StatusOK, rule)
}

func (h *RuleHandler) deleteMerge(w http.ResponseWriter, r *http.Request) {
	next, err := strconv.Atoi(r.URL.Query().Get("next"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "next must be an integer")
		return
	}

	h.deleted(w, r, h.store.Rules().DeleteMerge(r.URL.Query().Get("last"), next))
}

func (h *RuleHandler) deleted(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Rule not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to delete rule")
	default:
		reload(r, h.reloader)
		w.WriteHeader(http.StatusNoContent)
	}
}
