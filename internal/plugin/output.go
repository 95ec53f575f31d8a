package plugin

import (
	"context"
	"fmt"
	"sync"
)

// Edit is the keyboard change that turns one committed text into another.
type Edit struct {
	Backspaces int
	Insert     string
}

// Empty reports whether the edit changes nothing.
func (e Edit) Empty() bool { return e.Backspaces == 0 && e.Insert == "" }

// Diff returns the edit from prev to next: delete the runes after their
// common prefix, then type the rest of next.
func Diff(prev, next string) Edit {
	p, n := []rune(prev), []rune(next)
	i := 0
	for i < len(p) && i < len(n) && p[i] == n[i] {
		i++
	}
	return Edit{Backspaces: len(p) - i, Insert: string(n[i:])}
}

// CallFunc observes every plugin call an Output makes.
type CallFunc func(ctx context.Context, plugin string, err error)

// Output mirrors the committed text of a session into a text plugin. It
// tracks what has been sent so far and only forwards differences.
type Output struct {
	exec   *Executor
	plugin *Plugin
	onCall CallFunc

	mu   sync.Mutex
	sent string
}

// NewOutput returns an Output writing to plugin through exec. onCall may be
// nil.
func NewOutput(exec *Executor, plugin *Plugin, onCall CallFunc) *Output {
	return &Output{exec: exec, plugin: plugin, onCall: onCall}
}

// Plugin returns the target plugin.
func (o *Output) Plugin() *Plugin { return o.plugin }

// Sync forwards the difference between the last sent text and text.
func (o *Output) Sync(ctx context.Context, sessionID, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	edit := Diff(o.sent, text)
	if edit.Backspaces > 0 {
		err := o.call(ctx, &Request{Action: ActionBackspace, SessionID: sessionID, Count: edit.Backspaces})
		if err != nil {
			return err
		}
		r := []rune(o.sent)
		o.sent = string(r[:len(r)-edit.Backspaces])
	}
	if edit.Insert != "" {
		err := o.call(ctx, &Request{Action: ActionTypeText, SessionID: sessionID, Text: edit.Insert})
		if err != nil {
			return err
		}
		o.sent += edit.Insert
	}
	return nil
}

// Detach forgets the sent text without touching the target, so the next
// Sync starts from empty. Used when the session buffer is cleared after the
// text has already been delivered.
func (o *Output) Detach(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.sent = ""
	if !o.plugin.Manifest.Supports(ActionClear) {
		return nil
	}
	return o.call(ctx, &Request{Action: ActionClear, SessionID: sessionID})
}

// Sent returns the text the plugin has acknowledged.
func (o *Output) Sent() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent
}

func (o *Output) call(ctx context.Context, req *Request) error {
	resp, err := o.exec.Execute(ctx, o.plugin, req)
	if err == nil && !resp.Success {
		err = fmt.Errorf("plugin %s: %s: %s", o.plugin.Manifest.Name, req.Action, resp.Error)
	}
	if o.onCall != nil {
		o.onCall(ctx, o.plugin.Manifest.Name, err)
	}
	return err
}
