package term

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var decodeTests = []struct {
	name string
	data string
	want []Event
}{
	{"plain text", "hello", []Event{TextEvent("hello")}},
	{"enter CR", "\r", []Event{KeyEvent(K(Enter))}},
	{"enter LF", "\n", []Event{KeyEvent(K(Enter))}},
	{"CRLF is one enter", "\r\n", []Event{KeyEvent(K(Enter))}},
	{"tab", "\t", []Event{KeyEvent(K(Tab))}},
	{"backspace", "\x7f", []Event{KeyEvent(K(Backspace))}},
	{"lone escape", "\x1b", []Event{KeyEvent(K(Escape))}},
	{"up arrow", "\x1b[A", []Event{KeyEvent(K(Up))}},
	{"down arrow", "\x1b[B", []Event{KeyEvent(K(Down))}},
	{"right arrow", "\x1b[C", []Event{KeyEvent(K(Right))}},
	{"left arrow", "\x1b[D", []Event{KeyEvent(K(Left))}},
	{"home", "\x1b[H", []Event{KeyEvent(K(Home))}},
	{"end", "\x1b[F", []Event{KeyEvent(K(End))}},
	{"home tilde", "\x1b[1~", []Event{KeyEvent(K(Home))}},
	{"end tilde", "\x1b[4~", []Event{KeyEvent(K(End))}},
	{"delete", "\x1b[3~", []Event{KeyEvent(K(Delete))}},
	{"shift tab", "\x1b[Z", []Event{KeyEvent(K(Tab, Shift))}},
	{"shift left", "\x1b[1;2D", []Event{KeyEvent(K(Left, Shift))}},
	{"shift right", "\x1b[1;2C", []Event{KeyEvent(K(Right, Shift))}},
	{"ctrl delete", "\x1b[3;5~", []Event{KeyEvent(K(Delete, Ctrl))}},
	{"g3 up", "\x1bOA", []Event{KeyEvent(K(Up))}},
	{"g3 f1", "\x1bOP", []Event{KeyEvent(K(F1))}},
	{"alt key", "\x1bx", []Event{KeyEvent(K('x', Alt))}},
	{"mixed text and keys", "ab\x1b[D!",
		[]Event{TextEvent("ab"), KeyEvent(K(Left)), TextEvent("!")}},
	{"control chars dropped", "a\x01\x02b", []Event{TextEvent("ab")}},
	{"unknown CSI passed through", "\x1b[999q", []Event{TextEvent("\x1b[999q")}},
	{"paste with newline", "a=1\nb=2",
		[]Event{TextEvent("a=1"), KeyEvent(K(Enter)), TextEvent("b=2")}},
	{"empty", "", nil},
}

func TestDecode(t *testing.T) {
	for _, test := range decodeTests {
		got := Decode(test.data)
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%s: Decode(%q) (-want +got):\n%s", test.name, test.data, diff)
		}
	}
}

var keyStringTests = []struct {
	key  Key
	want string
}{
	{K('a'), "a"},
	{K(Up), "Up"},
	{K(Tab, Shift), "Shift-Tab"},
	{K(Left, Shift, Ctrl), "Ctrl-Shift-Left"},
	{K(Enter), "Enter"},
	{K('x', Alt), "Alt-x"},
}

func TestKeyString(t *testing.T) {
	for _, test := range keyStringTests {
		if got := test.key.String(); got != test.want {
			t.Errorf("%v.String() = %q, want %q", Key(test.key), got, test.want)
		}
	}
}

func TestIsFunction(t *testing.T) {
	if K('a').IsFunction() {
		t.Errorf("plain rune classified as function key")
	}
	if !K(Up).IsFunction() || !K('a', Ctrl).IsFunction() {
		t.Errorf("function key not classified as such")
	}
}
