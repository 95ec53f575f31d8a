package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/yubimoji/internal/motion"
)

func TestRuleHandler(t *testing.T) {
	reloader := &countingReloader{}
	h := NewRuleHandler(newTestStore(t), reloader)

	rec := doJSON(t, h, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"modifiers":[],"merges":[]}`, rec.Body.String())

	rec = doJSON(t, h, http.MethodPut, "/api/rules/modifiers", map[string]any{"base": 5, "modifier": "right", "result": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPut, "/api/rules/merges", map[string]any{"last": "は", "next": 70, "result": "ば"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rules rulesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rules))
	require.Len(t, rules.Modifiers, 1)
	assert.Equal(t, motion.Right, rules.Modifiers[0].Modifier)
	require.Len(t, rules.Merges, 1)
	assert.Equal(t, "ば", rules.Merges[0].Result)

	rec = doJSON(t, h, http.MethodDelete, "/api/rules/modifiers?base=5&modifier=right", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, h, http.MethodDelete, "/api/rules/merges?last="+url.QueryEscape("は")+"&next=70", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, 4, reloader.calls)
}

func TestRuleHandler_Errors(t *testing.T) {
	reloader := &countingReloader{}
	h := NewRuleHandler(newTestStore(t), reloader)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"none modifier", http.MethodPut, "/api/rules/modifiers", map[string]any{"base": 1, "modifier": "none", "result": 2}, http.StatusBadRequest},
		{"unknown modifier", http.MethodPut, "/api/rules/modifiers", map[string]any{"base": 1, "modifier": "left", "result": 2}, http.StatusBadRequest},
		{"empty merge", http.MethodPut, "/api/rules/merges", map[string]any{"next": 1}, http.StatusBadRequest},
		{"delete bad base", http.MethodDelete, "/api/rules/modifiers?base=x&modifier=up", nil, http.StatusBadRequest},
		{"delete bad modifier", http.MethodDelete, "/api/rules/modifiers?base=1&modifier=sideways", nil, http.StatusBadRequest},
		{"delete missing", http.MethodDelete, "/api/rules/modifiers?base=1&modifier=up", nil, http.StatusNotFound},
		{"delete missing merge", http.MethodDelete, "/api/rules/merges?last=x&next=1", nil, http.StatusNotFound},
		{"post collection", http.MethodPost, "/api/rules", nil, http.StatusMethodNotAllowed},
		{"get modifiers", http.MethodGet, "/api/rules/modifiers", nil, http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/api/rules/other", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	assert.Zero(t, reloader.calls)
}
