package common

import "errors"

// ErrActionPaused is returned when an entry point is gated off by an admin
// pause flag.
var ErrActionPaused = errors.New("action paused")

// PauseView reports whether a named action is currently paused.
type PauseView interface {
	IsPaused(action string) bool
}

// Guard rejects the call when the action's pause flag is set. A nil view or
// empty action name leaves the call ungated.
func Guard(p PauseView, action string) error {
	if p == nil || action == "" {
		return nil
	}
	if p.IsPaused(action) {
		return ErrActionPaused
	}
	return nil
}
