package term

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Pos is a cell position on the wrapped terminal grid, relative to the first
// row of the edit line.
type Pos struct {
	Row, Col int
}

// Writer emits VT100 escape sequences onto an output stream. It performs no
// buffering of its own beyond batching each call into a single write.
type Writer struct {
	out io.Writer
}

// NewWriter returns a Writer that writes to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

const (
	inverseVideo = "\033[7m"
	resetStyle   = "\033[0m"
	redForecolor = "\033[31m"
)

// MoveCursor emits the escape sequence moving the cursor from one grid
// position to another. Movement across rows uses relative row movement plus
// absolute column addressing, because plain arrow sequences do not cross
// soft-wrap boundaries.
func (w *Writer) MoveCursor(from, to Pos) error {
	if from == to {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(deltaPos(from, to))
	_, err := w.out.Write(buf.Bytes())
	return err
}

// deltaPos calculates the escape sequence needed to move the cursor from one
// position to another, using relative movement for the row and absolute
// movement for the column.
func deltaPos(from, to Pos) []byte {
	buf := new(bytes.Buffer)
	if from.Row < to.Row {
		fmt.Fprintf(buf, "\033[%dB", to.Row-from.Row)
	} else if from.Row > to.Row {
		fmt.Fprintf(buf, "\033[%dA", from.Row-to.Row)
	}
	buf.WriteString("\r")
	if to.Col > 0 {
		fmt.Fprintf(buf, "\033[%dC", to.Col)
	}
	return buf.Bytes()
}

// WriteString writes s verbatim.
func (w *Writer) WriteString(s string) error {
	_, err := io.WriteString(w.out, s)
	return err
}

// WriteSegments writes pre, sel and post at the cursor, rendering sel in
// inverse video. Empty segments are skipped.
func (w *Writer) WriteSegments(pre, sel, post string) error {
	var buf bytes.Buffer
	buf.WriteString(pre)
	if sel != "" {
		buf.WriteString(inverseVideo)
		buf.WriteString(sel)
		buf.WriteString(resetStyle)
	}
	buf.WriteString(post)
	_, err := w.out.Write(buf.Bytes())
	return err
}

// WriteOutput writes process output, normalizing bare LF to CRLF for a raw
// terminal and coloring stderr text red.
func (w *Writer) WriteOutput(s string, stderr bool) error {
	s = normalizeNewlines(s)
	var buf bytes.Buffer
	if stderr {
		buf.WriteString(redForecolor)
		buf.WriteString(s)
		buf.WriteString(resetStyle)
	} else {
		buf.WriteString(s)
	}
	_, err := w.out.Write(buf.Bytes())
	return err
}

// EraseDown erases from the cursor to the end of the screen.
func (w *Writer) EraseDown() error {
	return w.WriteString("\033[J")
}

// EraseLineTail erases from the cursor to the end of the line.
func (w *Writer) EraseLineTail() error {
	return w.WriteString("\033[K")
}

// CarriageReturn moves the cursor to column 0 of the current row.
func (w *Writer) CarriageReturn() error {
	return w.WriteString("\r")
}

// ClearScreen clears the terminal and homes the cursor.
func (w *Writer) ClearScreen() error {
	return w.WriteString("\033[H\033[2J")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
