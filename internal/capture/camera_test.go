package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewCamera_Defaults(t *testing.T) {
	cam := NewCamera(Options{DeviceID: 2})
	impl, ok := cam.(*cameraImpl)
	if !ok {
		t.Fatalf("NewCamera returned %T", cam)
	}
	if impl.opts.Width != DefaultWidth || impl.opts.Height != DefaultHeight {
		t.Errorf("size = %dx%d, want %dx%d", impl.opts.Width, impl.opts.Height, DefaultWidth, DefaultHeight)
	}
	if cam.FPS() != DefaultFPS {
		t.Errorf("FPS() = %d, want %d", cam.FPS(), DefaultFPS)
	}
	if cam.IsOpen() {
		t.Error("new camera should not be open")
	}
}

func TestCamera_SetFPS(t *testing.T) {
	tests := []struct {
		name string
		fps  int
		want int
	}{
		{"positive", 30, 30},
		{"zero ignored", 0, DefaultFPS},
		{"negative ignored", -5, DefaultFPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(Options{})
			cam.SetFPS(tt.fps)
			if got := cam.FPS(); got != tt.want {
				t.Errorf("FPS() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(Options{})
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(Options{})
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on unopened camera error = %v", err)
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping camera integration test")
	}

	cam := NewCamera(Options{Mirror: true})
	if err := cam.Open(); err != nil {
		t.Skipf("no camera available: %v", err)
	}
	defer cam.Close()

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Skipf("camera produced no frame: %v", err)
	}
	defer frame.Close()

	if frame.Empty() {
		t.Error("frame should not be empty")
	}
}

func TestMockCamera_Playback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	m1 := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer m1.Close()
	m2 := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV8UC3)
	defer m2.Close()

	cam := NewMockCamera([]*gocv.Mat{&m1, &m2}, false)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame before Open error = %v", err)
	}

	cam.Open()
	for _, want := range []int{10, 20} {
		frame, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if frame.Rows() != want {
			t.Errorf("rows = %d, want %d", frame.Rows(), want)
		}
		frame.Close()
	}

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrNoFrames) {
		t.Errorf("exhausted playback error = %v, want ErrNoFrames", err)
	}
}

func TestMockCamera_Loop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	m := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer m.Close()

	cam := NewMockCamera([]*gocv.Mat{&m}, true)
	cam.Open()
	for i := 0; i < 3; i++ {
		frame, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		frame.Close()
	}
}
