// Command keyboard is an output plugin for macOS that types committed text
// into the focused application through System Events.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode"

	"github.com/ayusman/yubimoji/internal/plugin"
)

// deleteKeyCode is the macOS virtual key code of the delete (backspace) key.
const deleteKeyCode = 51

func main() {
	var req plugin.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("decode request: %w", err))
		return
	}
	writeResponse(handle(req))
}

func handle(req plugin.Request) error {
	switch req.Action {
	case plugin.ActionTypeText:
		if req.Text == "" {
			return errors.New("text is required")
		}
		return runAppleScript(typeTextScript(req.Text))
	case plugin.ActionBackspace:
		if req.Count <= 0 {
			return errors.New("count must be positive")
		}
		return runAppleScript(backspaceScript(req.Count))
	default:
		return fmt.Errorf("unknown action: %s", req.Action)
	}
}

// typeTextScript types ASCII directly. Anything else goes through the
// clipboard, since keystroke cannot produce kana without an input method.
func typeTextScript(text string) string {
	quoted := quote(text)
	if isASCII(text) {
		return fmt.Sprintf(`tell application "System Events" to keystroke %s`, quoted)
	}
	return fmt.Sprintf(`set the clipboard to %s
tell application "System Events" to keystroke "v" using {command down}`, quoted)
}

func backspaceScript(count int) string {
	return fmt.Sprintf(`tell application "System Events"
repeat %d times
key code %d
end repeat
end tell`, count, deleteKeyCode)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func writeResponse(err error) {
	resp := plugin.Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
