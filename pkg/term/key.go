// Package term handles the raw terminal boundary of the command window:
// decoding incoming escape sequences into key events and emitting wrap-aware
// escape sequences for cursor movement and line redraws.
package term

import (
	"fmt"
	"strings"
)

// Mod represents a modifier key.
type Mod byte

// Values for Mod.
const (
	// Shift is only applied to special keys; 'A' and '@' are not considered
	// shift-modified.
	Shift Mod = 1 << iota
	Alt
	Ctrl
)

// Key represents a single keyboard input, typically assembled from an escape
// sequence.
type Key struct {
	Rune rune
	Mod  Mod
}

// Aliases for control runes that name keys.
const (
	Tab       rune = '\t'
	Enter     rune = '\n'
	Backspace rune = 0x7f
)

// Function key runes, which are negative so as not to clash with text runes.
const (
	Up rune = -(iota + 1)
	Down
	Right
	Left
	Home
	End
	Insert
	Delete
	PageUp
	PageDown
	Escape
	F1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
)

var functionKeyNames = []string{
	"(invalid)", "Up", "Down", "Right", "Left", "Home", "End", "Insert",
	"Delete", "PageUp", "PageDown", "Escape",
	"F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12",
}

var keyNames = map[rune]string{
	Tab: "Tab", Enter: "Enter", Backspace: "Backspace", ' ': "Space",
}

// K constructs a new Key from a rune and modifiers.
func K(r rune, mods ...Mod) Key {
	var mod Mod
	for _, m := range mods {
		mod |= m
	}
	return Key{r, mod}
}

func (k Key) String() string {
	var sb strings.Builder
	if k.Mod&Ctrl != 0 {
		sb.WriteString("Ctrl-")
	}
	if k.Mod&Alt != 0 {
		sb.WriteString("Alt-")
	}
	if k.Mod&Shift != 0 {
		sb.WriteString("Shift-")
	}
	if k.Rune >= 0 {
		if name, ok := keyNames[k.Rune]; ok {
			sb.WriteString(name)
		} else {
			sb.WriteRune(k.Rune)
		}
	} else {
		i := int(-k.Rune)
		if i < len(functionKeyNames) {
			sb.WriteString(functionKeyNames[i])
		} else {
			fmt.Fprintf(&sb, "(bad function key %d)", i)
		}
	}
	return sb.String()
}

// IsFunction reports whether the key is a function key or carries modifiers,
// i.e. is not a plain printable rune.
func (k Key) IsFunction() bool {
	return k.Mod != 0 || k.Rune < 0
}
