package term

import (
	"strings"
	"testing"
)

func TestDeltaPos(t *testing.T) {
	tests := []struct {
		name     string
		from, to Pos
		want     string
	}{
		{"same row right", Pos{0, 0}, Pos{0, 5}, "\r\033[5C"},
		{"same row to col0", Pos{0, 5}, Pos{0, 0}, "\r"},
		{"up a row to last col", Pos{1, 0}, Pos{0, 9}, "\033[1A\r\033[9C"},
		{"down a row to col0", Pos{0, 9}, Pos{1, 0}, "\033[1B\r"},
		{"down two rows", Pos{0, 3}, Pos{2, 4}, "\033[2B\r\033[4C"},
	}
	for _, test := range tests {
		if got := string(deltaPos(test.from, test.to)); got != test.want {
			t.Errorf("%s: deltaPos(%v, %v) = %q, want %q",
				test.name, test.from, test.to, got, test.want)
		}
	}
}

func TestMoveCursorNoop(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb)
	w.MoveCursor(Pos{1, 2}, Pos{1, 2})
	if sb.Len() != 0 {
		t.Errorf("MoveCursor to same position wrote %q", sb.String())
	}
}

func TestWriteSegments(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb)
	w.WriteSegments("ab", "cd", "ef")
	want := "ab\033[7mcd\033[0mef"
	if sb.String() != want {
		t.Errorf("WriteSegments = %q, want %q", sb.String(), want)
	}
}

func TestWriteSegmentsNoSelection(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb)
	w.WriteSegments("abcdef", "", "")
	if sb.String() != "abcdef" {
		t.Errorf("WriteSegments = %q, want %q", sb.String(), "abcdef")
	}
}

func TestWriteOutput(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb)
	w.WriteOutput("a\nb\r\nc", false)
	if got, want := sb.String(), "a\r\nb\r\nc"; got != want {
		t.Errorf("WriteOutput = %q, want %q", got, want)
	}

	sb.Reset()
	w.WriteOutput("err\n", true)
	if got, want := sb.String(), "\033[31merr\r\n\033[0m"; got != want {
		t.Errorf("WriteOutput stderr = %q, want %q", got, want)
	}
}
