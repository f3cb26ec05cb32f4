package cmdwin

import (
	"strings"

	"github.com/replkit/replkit/pkg/notify"
	"github.com/replkit/replkit/pkg/session"
	"github.com/replkit/replkit/pkg/term"
)

// gridPos returns the grid position of the byte offset into s when rendered
// on a terminal with the given column count. Soft wraps advance a row at
// every column boundary; an embedded newline advances a row and counts as a
// single index position.
func gridPos(s string, cols, offset int) term.Pos {
	row, col := 0, 0
	for i, r := range s {
		if i >= offset {
			break
		}
		if r == '\n' {
			row++
			col = 0
			continue
		}
		col++
		if col == cols {
			row++
			col = 0
		}
	}
	return term.Pos{Row: row, Col: col}
}

// hardWrap converts embedded newlines to CRLF and breaks the text with an
// explicit CRLF at every soft-wrap boundary. A write that ends exactly at
// the right edge otherwise leaves the physical cursor in the terminal's
// pending-wrap state on the old row while the grid model has already
// advanced. col is the starting column; the ending column is returned for
// chaining segments.
func hardWrap(s string, col, cols int) (string, int) {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' {
			b.WriteString("\r\n")
			col = 0
			continue
		}
		b.WriteRune(r)
		col++
		if col == cols {
			b.WriteString("\r\n")
			col = 0
		}
	}
	return b.String(), col
}

// cursorPos returns the cursor's grid position within the prompt-line area.
func (cw *Window) cursorPos() term.Pos {
	return gridPos(cw.line, cw.cols, len(cw.prompt)+cw.cursor)
}

// endPos returns the grid position just past the last cell of the line.
func (cw *Window) endPos() term.Pos {
	return gridPos(cw.line, cw.cols, len(cw.line))
}

func (cw *Window) posOf(typedOffset int) term.Pos {
	return gridPos(cw.line, cw.cols, len(cw.prompt)+typedOffset)
}

// redrawFrom rewrites the line from the given typed-text offset: the cursor
// is moved from oldPos (computed against the pre-mutation line) to the
// rewrite origin, everything below is erased, the tail of the line is
// written with the selection in inverse video, and the cursor is parked at
// its new position.
func (cw *Window) redrawFrom(oldPos term.Pos, fromTyped int) {
	from := cw.posOf(fromTyped)
	cw.w.MoveCursor(oldPos, from)
	cw.w.EraseDown()

	fromAbs := len(cw.prompt) + fromTyped
	selFrom, selTo := cw.selection()
	selFromAbs, selToAbs := len(cw.prompt)+selFrom, len(cw.prompt)+selTo
	if selFromAbs < fromAbs {
		selFromAbs = fromAbs
	}
	if selToAbs < fromAbs {
		selToAbs = fromAbs
	}
	col := from.Col
	var pre, sel, post string
	pre, col = hardWrap(cw.line[fromAbs:selFromAbs], col, cw.cols)
	sel, col = hardWrap(cw.line[selFromAbs:selToAbs], col, cw.cols)
	post, _ = hardWrap(cw.line[selToAbs:], col, cw.cols)
	cw.w.WriteSegments(pre, sel, post)
	cw.w.MoveCursor(cw.endPos(), cw.cursorPos())
}

// lineOrigin returns the grid position of the prompt line's first cell,
// relative to the start of the unflushed output region. With a partial
// output line pending, the prompt sits on the row beneath it.
func (cw *Window) lineOrigin() term.Pos {
	n := 0
	for _, f := range cw.partial {
		n += len(f.Text)
	}
	if n == 0 {
		return term.Pos{}
	}
	return term.Pos{Row: (n-1)/cw.cols + 1}
}

// clearScreen clears the terminal and redraws the prompt line.
func (cw *Window) clearScreen() {
	cw.partial = nil
	cw.w.ClearScreen()
	cw.w.WriteSegments(cw.segments())
	cw.w.MoveCursor(cw.endPos(), cw.cursorPos())
}

// segments splits the full line into pre-selection, selection and
// post-selection parts, hard-wrapped from column zero.
func (cw *Window) segments() (pre, sel, post string) {
	from, to := cw.selection()
	fromAbs, toAbs := len(cw.prompt)+from, len(cw.prompt)+to
	var col int
	pre, col = hardWrap(cw.line[:fromAbs], 0, cw.cols)
	sel, col = hardWrap(cw.line[fromAbs:toAbs], col, cw.cols)
	post, _ = hardWrap(cw.line[toAbs:], col, cw.cols)
	return pre, sel, post
}

// SetSize updates the terminal dimensions and rewraps the prompt line. The
// new size is pushed to the runtime on the next submission.
func (cw *Window) SetSize(rows, cols int) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cols <= 0 || rows <= 0 || (rows == cw.rows && cols == cw.cols) {
		return
	}
	old := cw.cursorPos() // still computed against the old width
	cw.rows, cw.cols = rows, cols
	cw.redrawFrom(old, 0)
}

// writeOutput interleaves runtime output with the unsubmitted prompt line:
// it erases from the start of the last unflushed output line, rewrites that
// line with the new fragment appended, and re-appends the prompt line
// beneath, so output never clobbers what the user has typed but not yet
// submitted.
func (cw *Window) writeOutput(e session.Output) {
	origin := cw.lineOrigin()
	cur := addPos(origin, cw.cursorPos())
	// Rewind to the start of the unflushed region and erase it, prompt line
	// included.
	cw.w.MoveCursor(cur, term.Pos{})
	cw.w.EraseDown()

	// Rewrite the partial line with the new fragment appended.
	cw.partial = append(cw.partial, notify.Text{Text: e.Text, Stream: e.Stream})
	var flushed []notify.Text
	cw.partial, flushed = splitFlushed(cw.partial)
	for _, f := range flushed {
		cw.w.WriteOutput(f.Text, f.Stream == notify.Stderr)
	}
	for _, f := range cw.partial {
		cw.w.WriteOutput(f.Text, f.Stream == notify.Stderr)
	}
	if len(cw.partial) > 0 {
		cw.w.WriteString("\r\n")
	}
	// Re-append the unsubmitted prompt line beneath the output.
	cw.w.WriteSegments(cw.segments())
	cw.w.MoveCursor(cw.endPos(), cw.cursorPos())
}

// splitFlushed splits buffered fragments at the last newline: everything up
// to and including it is flushed for good; the remainder is the new partial
// line.
func splitFlushed(frags []notify.Text) (partial, flushed []notify.Text) {
	cut := -1
	cutIdx := 0
	for i := len(frags) - 1; i >= 0; i-- {
		if j := lastNewline(frags[i].Text); j >= 0 {
			cut, cutIdx = i, j
			break
		}
	}
	if cut == -1 {
		return frags, nil
	}
	flushed = append(flushed, frags[:cut]...)
	head, tail := frags[cut].Text[:cutIdx+1], frags[cut].Text[cutIdx+1:]
	flushed = append(flushed, notify.Text{Text: head, Stream: frags[cut].Stream})
	if tail != "" {
		partial = append(partial, notify.Text{Text: tail, Stream: frags[cut].Stream})
	}
	return partial, flushed
}

func lastNewline(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}

func addPos(a, b term.Pos) term.Pos {
	if b.Row == 0 {
		return term.Pos{Row: a.Row, Col: a.Col + b.Col}
	}
	return term.Pos{Row: a.Row + b.Row, Col: b.Col}
}
