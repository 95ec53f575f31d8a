package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Preview holds the most recent camera frame as JPEG for MJPEG viewers.
// Frames are only encoded while someone is watching.
type Preview struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jpeg    []byte
	seq     uint64
	viewers int
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	p := &Preview{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Watching reports whether any viewer is connected.
func (p *Preview) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewers > 0
}

// Publish encodes frame and wakes the viewers. It does nothing without
// viewers.
func (p *Preview) Publish(frame *gocv.Mat) {
	if frame == nil || frame.Empty() || !p.Watching() {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		slog.Debug("preview encode failed", "err", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	p.PublishJPEG(data)
}

// PublishJPEG stores an already encoded frame.
func (p *Preview) PublishJPEG(data []byte) {
	p.mu.Lock()
	p.jpeg = data
	p.seq++
	p.mu.Unlock()
	p.cond.Broadcast()
}

// next blocks until a frame newer than seq exists or done is closed.
func (p *Preview) next(seq uint64, done <-chan struct{}) ([]byte, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.seq == seq {
		select {
		case <-done:
			return nil, seq, false
		default:
		}
		p.cond.Wait()
	}
	return p.jpeg, p.seq, true
}

func (p *Preview) join() {
	p.mu.Lock()
	p.viewers++
	p.mu.Unlock()
}

func (p *Preview) leave() {
	p.mu.Lock()
	p.viewers--
	p.mu.Unlock()
}

// wake releases waiters so they can observe cancellation.
func (p *Preview) wake() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cond.Broadcast()
}

// StreamHandler serves the preview as multipart MJPEG.
type StreamHandler struct {
	preview  *Preview
	minFrame time.Duration
}

// NewStreamHandler creates a StreamHandler over preview, capped at 15 FPS.
func NewStreamHandler(preview *Preview) *StreamHandler {
	return &StreamHandler{preview: preview, minFrame: time.Second / 15}
}

// ServeHTTP streams frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.preview.join()
	defer h.preview.leave()

	done := r.Context().Done()
	stop := context.AfterFunc(r.Context(), h.preview.wake)
	defer stop()

	var seq uint64
	for {
		data, next, ok := h.preview.next(seq, done)
		if !ok {
			return
		}
		seq = next

		fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data))
		if _, err := w.Write(data); err != nil {
			return
		}
		fmt.Fprint(w, "\r\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		select {
		case <-done:
			return
		case <-time.After(h.minFrame):
		}
	}
}
