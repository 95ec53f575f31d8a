// Package tray provides the macOS menu bar interface: an enable toggle and a
// live view of the committed text.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

const (
	appTitle = "指文字"
	// titleRunes is how much of the committed text fits in the menu bar.
	titleRunes = 12
)

// Tray represents the menu bar application.
type Tray struct {
	onToggle   func(enabled bool)
	onClear    func()
	onSettings func()
	onQuit     func()
	enabled    bool
	text       string
	mu         sync.RWMutex

	menuToggle *systray.MenuItem
	menuText   *systray.MenuItem
}

// New creates a Tray with the given initial enabled state.
func New(enabled bool) *Tray {
	return &Tray{enabled: enabled}
}

// OnToggle sets the callback run when recognition is switched on or off.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnClear sets the callback run when the user clears the text.
func (t *Tray) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnSettings sets the callback run when the settings item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback run before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It blocks until Quit is called and must run on the
// main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	t.mu.Lock()
	systray.SetTitle(Title(t.text))
	systray.SetTooltip("Fingerspelling input")

	t.menuToggle = systray.AddMenuItem(toggleLabel(t.enabled), "Toggle recognition")
	systray.AddSeparator()

	t.menuText = systray.AddMenuItem(textLabel(t.text), "Committed text")
	t.menuText.Disable()
	menuClear := systray.AddMenuItem("Clear Text", "Start a new session")
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit")
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuClear.ClickedCh:
				t.fire(func() func() { return t.onClear })
			case <-menuSettings.ClickedCh:
				t.fire(func() func() { return t.onSettings })
			case <-menuQuit.ClickedCh:
				t.fire(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

// fire runs the callback returned by get outside the lock.
func (t *Tray) fire(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetText shows text in the menu bar title and the text item.
func (t *Tray) SetText(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if text == t.text {
		return
	}
	t.text = text
	if t.menuText != nil {
		systray.SetTitle(Title(text))
		t.menuText.SetTitle(textLabel(text))
	}
}

// SetEnabled updates the toggle without running the callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Text returns the last text shown.
func (t *Tray) Text() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.text
}

// Title returns the menu bar title for text: the app name when empty,
// otherwise the tail of the text.
func Title(text string) string {
	if text == "" {
		return appTitle
	}
	r := []rune(text)
	if len(r) <= titleRunes {
		return text
	}
	return "…" + string(r[len(r)-titleRunes:])
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func textLabel(text string) string {
	if text == "" {
		return "Text: (empty)"
	}
	return "Text: " + text
}
