package main

import (
	"strings"
	"testing"

	"github.com/ayusman/yubimoji/internal/plugin"
)

func TestTypeTextScript(t *testing.T) {
	ascii := typeTextScript(`say "hi"`)
	if !strings.Contains(ascii, `keystroke "say \"hi\""`) {
		t.Errorf("ascii script = %s", ascii)
	}

	kana := typeTextScript("あ")
	if !strings.Contains(kana, `set the clipboard to "あ"`) || !strings.Contains(kana, "command down") {
		t.Errorf("kana script = %s", kana)
	}
}

func TestBackspaceScript(t *testing.T) {
	script := backspaceScript(3)
	if !strings.Contains(script, "repeat 3 times") || !strings.Contains(script, "key code 51") {
		t.Errorf("backspace script = %s", script)
	}
}

func TestHandle_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  plugin.Request
		want string
	}{
		{"empty text", plugin.Request{Action: plugin.ActionTypeText}, "text is required"},
		{"zero count", plugin.Request{Action: plugin.ActionBackspace}, "count must be positive"},
		{"unknown", plugin.Request{Action: "shortcut"}, "unknown action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handle(tt.req)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("handle() error = %v, want %q", err, tt.want)
			}
		})
	}
}
