// Package histutil keeps command history and implements prefix-filtered
// navigation over it.
package histutil

import (
	"errors"
	"strings"
)

// ErrEndOfHistory is returned when navigating past either end of history.
var ErrEndOfHistory = errors.New("end of history")

// List is an append-only sequence of submitted commands.
type List struct {
	cmds []string
}

// NewList returns a List seeded with the given commands, oldest first.
func NewList(cmds ...string) *List {
	return &List{cmds: append([]string(nil), cmds...)}
}

// Add appends cmd and reports whether it was kept. Empty commands and
// immediate duplicates of the last entry are not appended.
func (l *List) Add(cmd string) bool {
	if cmd == "" {
		return false
	}
	if n := len(l.cmds); n > 0 && l.cmds[n-1] == cmd {
		return false
	}
	l.cmds = append(l.cmds, cmd)
	return true
}

// All returns the commands, oldest first. The returned slice must not be
// mutated.
func (l *List) All() []string { return l.cmds }

// Len returns the number of entries.
func (l *List) Len() int { return len(l.cmds) }

// Walker walks a navigation session over history. If the live line is
// non-empty when the session begins, the walker only visits entries with a
// matching case-insensitive prefix; the filter is computed once per session.
// Entries may contain embedded newlines; the prefix is matched against the
// whole flattened string.
type Walker struct {
	entries []string
	index   int
	live    string
}

// NewWalker begins a navigation session over raw with the given live line.
func NewWalker(raw []string, live string) *Walker {
	entries := raw
	if live != "" {
		entries = nil
		lower := strings.ToLower(live)
		for _, cmd := range raw {
			if strings.HasPrefix(strings.ToLower(cmd), lower) {
				entries = append(entries, cmd)
			}
		}
	}
	return &Walker{entries: entries, index: len(entries), live: live}
}

// Current returns the entry the walker is on; at the live position it
// returns the line as it was when navigation began.
func (w *Walker) Current() string {
	if w.index == len(w.entries) {
		return w.live
	}
	return w.entries[w.index]
}

// AtLive reports whether the walker is at the live edit line.
func (w *Walker) AtLive() bool { return w.index == len(w.entries) }

// Prev walks to the previous (older) matching entry.
func (w *Walker) Prev() error {
	if w.index == 0 {
		return ErrEndOfHistory
	}
	w.index--
	return nil
}

// Next walks to the next (newer) entry; moving past the newest entry lands
// back on the live line.
func (w *Walker) Next() error {
	if w.index >= len(w.entries) {
		return ErrEndOfHistory
	}
	w.index++
	return nil
}
