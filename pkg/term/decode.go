package term

import "strings"

// Event is a decoded unit of terminal input.
type Event interface{ isEvent() }

// KeyEvent is a special key or a key chord.
type KeyEvent Key

// TextEvent is literal text: printable runes, or an unrecognized escape
// sequence that is not classified as a special key and is passed through.
type TextEvent string

func (KeyEvent) isEvent()  {}
func (TextEvent) isEvent() {}

// Decode interprets a chunk of raw terminal input as a sequence of events.
// Consecutive printable runes coalesce into one TextEvent. Control
// characters below space other than CR, LF, Tab and ESC are dropped
// outright.
func Decode(data string) []Event {
	var events []Event
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			events = append(events, TextEvent(text.String()))
			text.Reset()
		}
	}

	rs := []rune(data)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case r == 0x1b:
			flush()
			ev, n := decodeEscape(rs[i:])
			if ev != nil {
				events = append(events, ev)
			}
			i += n
		case r == '\r':
			flush()
			events = append(events, KeyEvent(K(Enter)))
			// Swallow the LF of a CRLF pair.
			if i+1 < len(rs) && rs[i+1] == '\n' {
				i++
			}
			i++
		case r == '\n':
			flush()
			events = append(events, KeyEvent(K(Enter)))
			i++
		case r == '\t':
			flush()
			events = append(events, KeyEvent(K(Tab)))
			i++
		case r == 0x7f:
			flush()
			events = append(events, KeyEvent(K(Backspace)))
			i++
		case r < 0x20:
			// Other control characters are ignored outright.
			i++
		default:
			text.WriteRune(r)
			i++
		}
	}
	flush()
	return events
}

// decodeEscape decodes an escape sequence at the start of rs (rs[0] is ESC).
// It returns the event (nil if the sequence is classified as a special key
// that has no Key mapping, which is dropped) and the number of runes
// consumed.
func decodeEscape(rs []rune) (Event, int) {
	if len(rs) == 1 {
		return KeyEvent(K(Escape)), 1
	}
	switch rs[1] {
	case '[':
		return decodeCSI(rs)
	case 'O':
		if len(rs) < 3 {
			return KeyEvent(K(Escape)), 1
		}
		if k, ok := g3Seq[rs[2]]; ok {
			return KeyEvent(k), 3
		}
		// Unrecognized G3 sequence; pass through.
		return TextEvent(string(rs[:3])), 3
	default:
		// ESC followed by an ordinary rune is an Alt-modified key.
		return KeyEvent(K(rs[1], Alt)), 2
	}
}

// decodeCSI decodes a CSI sequence: ESC '[' params final. rs[0..1] are
// ESC '['.
func decodeCSI(rs []rune) (Event, int) {
	nums := []int{}
	i := 2
	numSeen := false
	for ; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == ';':
			if !numSeen {
				nums = append(nums, 0)
			}
			nums = append(nums, 0)
			numSeen = true
		case '0' <= r && r <= '9':
			if len(nums) == 0 {
				nums = append(nums, 0)
			}
			nums[len(nums)-1] = nums[len(nums)-1]*10 + int(r-'0')
			numSeen = true
		default:
			// Terminator.
			if k, ok := parseCSI(nums, r); ok {
				return KeyEvent(k), i + 1
			}
			// Not a key; pass the whole sequence through.
			return TextEvent(string(rs[:i+1])), i + 1
		}
	}
	// Incomplete CSI; treat ESC as Escape and reprocess the rest as text.
	return KeyEvent(K(Escape)), 1
}

func parseCSI(nums []int, last rune) (Key, bool) {
	switch len(nums) {
	case 0:
		if k, ok := csiSeqByLast[last]; ok {
			return k, true
		}
	case 1:
		if last == '~' {
			if r, ok := csiSeqTilde[nums[0]]; ok {
				return K(r), true
			}
		}
	case 2:
		if last == '~' {
			if r, ok := csiSeqTilde[nums[0]]; ok {
				return xtermModify(K(r), nums[1]), true
			}
		} else if k, ok := csiSeqByLast[last]; ok && nums[0] == 1 {
			return xtermModify(k, nums[1]), true
		}
	}
	return Key{}, false
}

// xtermModify applies an xterm-style modifier code to a key.
func xtermModify(k Key, mod int) Key {
	switch mod {
	case 0, 1:
	case 2:
		k.Mod |= Shift
	case 3:
		k.Mod |= Alt
	case 4:
		k.Mod |= Shift | Alt
	case 5:
		k.Mod |= Ctrl
	case 6:
		k.Mod |= Shift | Ctrl
	case 7:
		k.Mod |= Alt | Ctrl
	case 8:
		k.Mod |= Shift | Alt | Ctrl
	}
	return k
}

// G3-style key sequences: ESC 'O' followed by exactly one rune.
var g3Seq = map[rune]Key{
	'A': K(Up), 'B': K(Down), 'C': K(Right), 'D': K(Left),
	'H': K(Home), 'F': K(End), 'M': K(Insert),
	'P': K(F1), 'Q': K(F2), 'R': K(F3), 'S': K(F4),
}

// CSI-style key sequences identified by the final rune.
var csiSeqByLast = map[rune]Key{
	'A': K(Up), 'B': K(Down), 'C': K(Right), 'D': K(Left),
	'a': K(Up, Shift), 'b': K(Down, Shift),
	'c': K(Right, Shift), 'd': K(Left, Shift),
	'H': K(Home), 'F': K(End),
	'Z': K(Tab, Shift),
}

// CSI-style key sequences ending in '~', identified by the first numeric
// argument.
var csiSeqTilde = map[int]rune{
	1: Home, 2: Insert, 3: Delete, 4: End,
	5: PageUp, 6: PageDown, 7: Home, 8: End,
	11: F1, 12: F2, 13: F3, 14: F4,
	15: F5, 17: F6, 18: F7, 19: F8,
	20: F9, 21: F10, 23: F11, 24: F12,
}
