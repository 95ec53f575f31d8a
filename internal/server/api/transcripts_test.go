package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/yubimoji/internal/store"
)

func TestTranscriptHandler(t *testing.T) {
	s := newTestStore(t)
	h := NewTranscriptHandler(s)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, text := range []string{"あい", "うえお", "か"} {
		require.NoError(t, s.Transcripts().Create(&store.Transcript{
			ID:        []string{"t1", "t2", "t3"}[i],
			SessionID: "s",
			Text:      text,
			Reason:    store.ReasonIdle,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	rec := doJSON(t, h, http.MethodGet, "/api/transcripts?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list listTranscriptsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Transcripts, 2)
	assert.Equal(t, "か", list.Transcripts[0].Text)

	rec = doJSON(t, h, http.MethodGet, "/api/transcripts/t2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got store.Transcript
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "うえお", got.Text)

	rec = doJSON(t, h, http.MethodDelete, "/api/transcripts/t2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/transcripts/t2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/transcripts?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/transcripts", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTranscriptHandler_Empty(t *testing.T) {
	h := NewTranscriptHandler(newTestStore(t))

	rec := doJSON(t, h, http.MethodGet, "/api/transcripts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"transcripts":[]}`, rec.Body.String())
}
