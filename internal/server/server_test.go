package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/hand"
	"github.com/ayusman/yubimoji/internal/observe"
	"github.com/ayusman/yubimoji/internal/store"
)

// stubSession runs a real engine and broadcasts results like the app does.
type stubSession struct {
	mu  sync.Mutex
	eng *engine.Engine
	hub *Hub
	now time.Time
}

func newStubSession(t *testing.T) *stubSession {
	t.Helper()
	s := &stubSession{now: time.Unix(0, 0)}
	tables := engine.Tables{Labels: compose.NewLabelTable([]string{"あ", "い"}, compose.DefaultTokenNames())}
	eng, err := engine.New(engine.DefaultConfig(), tables, nil, engine.WithClock(func() time.Time { return s.now }))
	require.NoError(t, err)
	s.eng = eng
	return s
}

func (s *stubSession) ProcessFrame(_ context.Context, _ string, f engine.Frame) (engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(500 * time.Millisecond)
	r, err := s.eng.ProcessAt(s.now, f)
	if err == nil && s.hub != nil {
		s.hub.Broadcast(r)
	}
	return r, err
}

func (s *stubSession) Snapshot() engine.Result { return s.eng.Snapshot() }

func (s *stubSession) Reset(context.Context) (engine.Result, error) { return s.eng.Reset(), nil }

func frameJSON(t *testing.T, shapeID int) []byte {
	t.Helper()
	lm := hand.ThumbsUp()
	data, err := json.Marshal(engine.Frame{Hands: []engine.Hand{{
		Keypoints:  lm.Points[:],
		Handedness: "Right",
		ShapeID:    &shapeID,
	}}})
	require.NoError(t, err)
	return data
}

func TestServer_Health(t *testing.T) {
	s := New(Config{Session: newStubSession(t)})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var response map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "ok", response["status"])
		assert.Contains(t, response, "uptime")
		assert.NotEmpty(t, response["sessionId"])
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		}
	})
}

func TestServer_Routes(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	full := New(Config{
		Store:          st,
		Session:        newStubSession(t),
		Hub:            NewHub(nil, nil),
		Preview:        NewPreview(),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) }),
	})
	bare := New(Config{})

	tests := []struct {
		path     string
		fullCode int
	}{
		{"/api/symbols", http.StatusOK},
		{"/api/rules", http.StatusOK},
		{"/api/transcripts", http.StatusOK},
		{"/api/session", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/nonexistent", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			full.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.fullCode, rec.Code)

			rec = httptest.NewRecorder()
			bare.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusNotFound, rec.Code, "route should be absent without its dependency")
		})
	}
}

func TestServer_Frames(t *testing.T) {
	s := New(Config{Session: newStubSession(t)})

	var last engine.Result
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/frames", strings.NewReader(string(frameJSON(t, 1))))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&last))
	}
	assert.Equal(t, "い", last.Text)
}

func TestServer_MetricsMiddleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	s := New(Config{Metrics: m})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	assert.Contains(t, names, "yubimoji.http.request.duration")
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()
	testContent := "<html><body>指文字</body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644))

	s := New(Config{StaticDir: tmpDir})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testContent, rec.Body.String())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Run(t *testing.T) {
	s := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHub_FramesAndBroadcast(t *testing.T) {
	session := newStubSession(t)
	hub := NewHub(session, nil)
	session.hub = hub

	srv := httptest.NewServer(New(Config{Session: session, Hub: hub}))
	defer srv.Close()

	sender := dialHub(t, srv)
	watcher := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 2; i++ {
		require.NoError(t, sender.WriteMessage(websocket.TextMessage, frameJSON(t, 0)))
	}

	var got []Message
	for i := 0; i < 2; i++ {
		got = append(got, readMessage(t, watcher))
	}
	require.Equal(t, MessageResult, got[1].Type)
	require.NotNil(t, got[1].Result)
	assert.Equal(t, "あ", got[1].Result.Text)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"hands":[{"handedness":"Up"}]}`)))
	// The sender sees its own two results first, then the error.
	readMessage(t, sender)
	readMessage(t, sender)
	m := readMessage(t, sender)
	assert.Equal(t, MessageError, m.Type)
	assert.Equal(t, "input", m.Kind)

	hub.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPreview_Stream(t *testing.T) {
	preview := NewPreview()
	srv := httptest.NewServer(NewStreamHandler(preview))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	respCh := make(chan *http.Response, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			resp = nil
		}
		respCh <- resp
	}()

	require.Eventually(t, preview.Watching, 2*time.Second, 10*time.Millisecond)
	preview.PublishJPEG([]byte("jpeg-bytes"))

	resp := <-respCh
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))

	buf := make([]byte, 256)
	var body strings.Builder
	for !strings.Contains(body.String(), "jpeg-bytes") {
		n, err := resp.Body.Read(buf)
		body.Write(buf[:n])
		require.NoError(t, err)
	}
	assert.Contains(t, body.String(), "Content-Length: 10")

	cancel()
	require.Eventually(t, func() bool { return !preview.Watching() }, 2*time.Second, 10*time.Millisecond)
}
