// Package cmdwin implements the command window: a line-editable prompt
// overlaid on a raw terminal stream, synchronized with the runtime session.
// It owns the current input line, cursor and selection, command history,
// tab-completion cycling, and the interleaving of runtime output with the
// unsubmitted prompt line.
package cmdwin

import (
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/replkit/replkit/pkg/histutil"
	"github.com/replkit/replkit/pkg/notify"
	"github.com/replkit/replkit/pkg/session"
	"github.com/replkit/replkit/pkg/store"
	"github.com/replkit/replkit/pkg/term"
)

// promptMode maps a prompt state to its literal prompt string and whether
// the line is editable in that state.
type promptMode struct {
	prompt   string
	editable bool
}

// promptModes is the prompt finite-state-machine table.
var promptModes = map[notify.PromptState]promptMode{
	notify.PromptInitializing:    {"", false},
	notify.PromptReady:           {">> ", true},
	notify.PromptBusy:            {"", false},
	notify.PromptDebug:           {"K>> ", true},
	notify.PromptInput:           {"? ", true},
	notify.PromptPause:           {"", false},
	notify.PromptMore:            {"", false},
	notify.PromptCompletingBlock: {"", true},
}

const noAnchor = -1

// Spec configures a Window.
type Spec struct {
	// Session is the runtime session the window drives.
	Session *session.Session
	// Output is the terminal byte sink.
	Output io.Writer
	// Store optionally persists submitted commands; history is seeded from
	// it at construction.
	Store *store.Store
	// Rows and Columns are the initial terminal dimensions.
	Rows, Columns int

	Logger *zap.Logger
}

// Window is the command window state machine. All mutation happens under one
// mutex; an entire keystroke's editing and redraw side effects complete
// before the next input is handled.
type Window struct {
	mu     sync.Mutex
	sess   *session.Session
	w      *term.Writer
	st     *store.Store
	logger *zap.Logger

	rows, cols         int
	sentRows, sentCols int

	promptState notify.PromptState
	prompt      string
	line        string // always begins with prompt
	cursor      int    // byte offset into line, excluding the prompt
	anchor      int    // other end of the selection; noAnchor if none

	hist   *histutil.List
	walker *histutil.Walker // non-nil while navigating history

	comp completion

	// partial is the last unterminated output line, by fragment, used to
	// re-render the region between flushed output and the prompt line.
	partial []notify.Text

	clipboard string

	subs []notify.Subscription
}

// New returns a Window wired to the session's events and the notifier's
// completion responses.
func New(spec Spec) *Window {
	logger := spec.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cols := spec.Columns
	if cols <= 0 {
		cols = 80
	}
	rows := spec.Rows
	if rows <= 0 {
		rows = 24
	}
	cw := &Window{
		sess:        spec.Session,
		w:           term.NewWriter(spec.Output),
		st:          spec.Store,
		logger:      logger,
		rows:        rows,
		cols:        cols,
		promptState: notify.PromptInitializing,
		anchor:      noAnchor,
		hist:        histutil.NewList(),
	}
	if cw.st != nil {
		if cmds, err := cw.st.AllCmds(); err == nil {
			cw.hist = histutil.NewList(cmds...)
		} else {
			logger.Warn("history load failed", zap.Error(err))
		}
	}
	cw.subs = append(cw.subs,
		cw.sess.Watch(cw.onSessionEvent),
		cw.sess.Notifier().Subscribe(notify.CompletionResponseChan, cw.onCompletionResponse),
	)
	return cw
}

// Close detaches the window from the session.
func (cw *Window) Close() {
	for _, s := range cw.subs {
		s.Close()
	}
	cw.subs = nil
}

// typed returns the text of the line after the prompt.
func (cw *Window) typed() string { return cw.line[len(cw.prompt):] }

// HandleInput processes a chunk of raw terminal input from the user. A chunk
// that decodes to more than one event is treated as a paste: embedded Enter
// keys insert newlines instead of submitting.
func (cw *Window) HandleInput(data string) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	events := term.Decode(data)
	cw.handleEvents(events, len(events) > 1)
}

// Paste inserts text through the same pipeline as typed input.
func (cw *Window) Paste(text string) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.handleEvents(term.Decode(text), true)
}

// Submit replaces the typed text and submits it as if Enter was pressed, so
// the text lands in history like a typed command.
func (cw *Window) Submit(text string) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.editable() {
		return
	}
	cw.invalidateCompletion()
	cw.setTyped(text)
	cw.submit()
}

// SelectAll selects the whole typed text.
func (cw *Window) SelectAll() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.editable() || len(cw.typed()) == 0 {
		return
	}
	old := cw.cursorPos()
	cw.anchor = 0
	cw.cursor = len(cw.typed())
	cw.redrawFrom(old, 0)
}

// Copy returns the selected text, remembering it as the window clipboard.
func (cw *Window) Copy() string {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	from, to := cw.selection()
	if from == to {
		return ""
	}
	cw.clipboard = cw.typed()[from:to]
	return cw.clipboard
}

func (cw *Window) handleEvents(events []term.Event, paste bool) {
	for _, ev := range events {
		cw.handleEvent(ev, paste)
	}
}

func (cw *Window) handleEvent(ev term.Event, paste bool) {
	mode := cw.mode()
	if cw.promptState == notify.PromptInitializing {
		return
	}
	if cw.promptState == notify.PromptPause {
		// Keystrokes unpause instead of editing the line.
		cw.sess.Unpause()
		return
	}
	if !mode.editable {
		return
	}
	switch ev := ev.(type) {
	case term.TextEvent:
		cw.invalidateCompletion()
		cw.insert(string(ev))
	case term.KeyEvent:
		cw.handleKey(term.Key(ev), paste)
	}
}

func (cw *Window) handleKey(k term.Key, paste bool) {
	switch k {
	case term.K(term.Enter):
		cw.invalidateCompletion()
		if paste {
			cw.insert("\n")
		} else {
			cw.submit()
		}
	case term.K(term.Backspace):
		cw.invalidateCompletion()
		cw.backspace()
	case term.K(term.Delete):
		cw.invalidateCompletion()
		cw.deleteForward()
	case term.K(term.Left):
		cw.invalidateCompletion()
		cw.moveCursor(cw.prevOffset(), false)
	case term.K(term.Right):
		cw.invalidateCompletion()
		cw.moveCursor(cw.nextOffset(), false)
	case term.K(term.Left, term.Shift):
		cw.invalidateCompletion()
		cw.moveCursor(cw.prevOffset(), true)
	case term.K(term.Right, term.Shift):
		cw.invalidateCompletion()
		cw.moveCursor(cw.nextOffset(), true)
	case term.K(term.Home):
		cw.invalidateCompletion()
		cw.moveCursor(cw.logicalLineStart(), false)
	case term.K(term.End):
		cw.invalidateCompletion()
		cw.moveCursor(cw.logicalLineEnd(), false)
	case term.K(term.Home, term.Shift):
		cw.invalidateCompletion()
		cw.moveCursor(cw.logicalLineStart(), true)
	case term.K(term.End, term.Shift):
		cw.invalidateCompletion()
		cw.moveCursor(cw.logicalLineEnd(), true)
	case term.K(term.Up):
		cw.invalidateCompletion()
		cw.historyPrev()
	case term.K(term.Down):
		cw.invalidateCompletion()
		cw.historyNext()
	case term.K(term.Tab):
		cw.completeNext()
	case term.K(term.Tab, term.Shift):
		cw.completePrev()
	case term.K(term.Escape):
		cw.invalidateCompletion()
		cw.clearLine()
	default:
		// Unhandled special keys are silently dropped.
	}
}

func (cw *Window) mode() promptMode {
	if m, ok := promptModes[cw.promptState]; ok {
		return m
	}
	return promptMode{"", false}
}

func (cw *Window) editable() bool { return cw.mode().editable }

// selection returns the selected range [from, to) in typed-text offsets;
// from == to means no selection.
func (cw *Window) selection() (from, to int) {
	if cw.anchor == noAnchor {
		return cw.cursor, cw.cursor
	}
	if cw.anchor < cw.cursor {
		return cw.anchor, cw.cursor
	}
	return cw.cursor, cw.anchor
}

// prevOffset returns the cursor offset one position to the left, crossing
// soft-wrap and embedded-newline boundaries alike: both are just one index
// step in the flattened string.
func (cw *Window) prevOffset() int {
	t := cw.typed()
	if cw.cursor == 0 {
		return 0
	}
	_, n := utf8.DecodeLastRuneInString(t[:cw.cursor])
	return cw.cursor - n
}

func (cw *Window) nextOffset() int {
	t := cw.typed()
	if cw.cursor >= len(t) {
		return len(t)
	}
	_, n := utf8.DecodeRuneInString(t[cw.cursor:])
	return cw.cursor + n
}

// logicalLineStart returns the offset just after the embedded newline
// preceding the cursor, or 0.
func (cw *Window) logicalLineStart() int {
	t := cw.typed()
	if i := strings.LastIndexByte(t[:cw.cursor], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// logicalLineEnd returns the offset of the embedded newline at or after the
// cursor, or the end of the text.
func (cw *Window) logicalLineEnd() int {
	t := cw.typed()
	if i := strings.IndexByte(t[cw.cursor:], '\n'); i >= 0 {
		return cw.cursor + i
	}
	return len(t)
}

// moveCursor moves the cursor to offset; extend keeps or establishes the
// selection anchor, plain movement collapses it.
func (cw *Window) moveCursor(offset int, extend bool) {
	old := cw.cursorPos()
	hadSelection := cw.anchor != noAnchor
	if extend {
		if cw.anchor == noAnchor {
			cw.anchor = cw.cursor
		}
	} else {
		cw.anchor = noAnchor
	}
	// Plain cursor movement does not end a history navigation session;
	// only edits do.
	cw.cursor = offset
	if extend || hadSelection {
		// Selection highlighting changed; rewrite the line.
		cw.redrawFrom(old, 0)
		return
	}
	if err := cw.w.MoveCursor(old, cw.cursorPos()); err != nil {
		cw.logger.Warn("cursor move failed", zap.Error(err))
	}
}

// insert splices text at the cursor, deleting the selection first if one
// exists. Inserting at the very end streams the text directly; otherwise
// the line is redrawn from the insertion point.
func (cw *Window) insert(text string) {
	if text == "" {
		return
	}
	cw.walker = nil
	old := cw.cursorPos()
	from, to := cw.selection()
	t := cw.typed()
	if from != to {
		cw.anchor = noAnchor
		cw.line = cw.prompt + t[:from] + text + t[to:]
		cw.cursor = from + len(text)
		cw.redrawFrom(old, from)
		return
	}
	if cw.cursor == len(t) {
		cw.line += text
		cw.cursor += len(text)
		wrapped, _ := hardWrap(text, old.Col, cw.cols)
		if err := cw.w.WriteString(wrapped); err != nil {
			cw.logger.Warn("write failed", zap.Error(err))
		}
		return
	}
	at := cw.cursor
	cw.line = cw.prompt + t[:at] + text + t[at:]
	cw.cursor = at + len(text)
	cw.redrawFrom(old, at)
}

// backspace deletes the selection if one exists, else the rune before the
// cursor.
func (cw *Window) backspace() {
	cw.walker = nil
	from, to := cw.selection()
	if from != to {
		cw.deleteRange(from, to)
		return
	}
	if cw.cursor == 0 {
		return
	}
	cw.deleteRange(cw.prevOffset(), cw.cursor)
}

// deleteForward deletes the selection if one exists, else the rune at the
// cursor.
func (cw *Window) deleteForward() {
	cw.walker = nil
	from, to := cw.selection()
	if from != to {
		cw.deleteRange(from, to)
		return
	}
	if cw.cursor >= len(cw.typed()) {
		return
	}
	cw.deleteRange(cw.cursor, cw.nextOffset())
}

// deleteRange removes [from, to) from the typed text and leaves the cursor
// at from.
func (cw *Window) deleteRange(from, to int) {
	old := cw.cursorPos()
	t := cw.typed()
	cw.anchor = noAnchor
	cw.line = cw.prompt + t[:from] + t[to:]
	cw.cursor = from
	cw.redrawFrom(old, from)
}

// historyPrev recalls the previous history entry. The first press begins a
// navigation session filtered by the text typed so far; later presses walk
// the same filtered sequence.
func (cw *Window) historyPrev() {
	if cw.walker == nil {
		cw.walker = histutil.NewWalker(cw.hist.All(), cw.typed())
	}
	if cw.walker.Prev() != nil {
		return
	}
	cw.setTyped(cw.walker.Current())
}

// historyNext walks forward; moving past the newest entry restores the line
// as it was when navigation began.
func (cw *Window) historyNext() {
	if cw.walker == nil {
		return
	}
	if cw.walker.Next() != nil {
		return
	}
	cw.setTyped(cw.walker.Current())
}

// setTyped replaces the typed text, placing the cursor at the end.
func (cw *Window) setTyped(text string) {
	old := cw.cursorPos()
	cw.anchor = noAnchor
	cw.line = cw.prompt + text
	cw.cursor = len(text)
	cw.redrawFrom(old, 0)
}

// clearLine resets the line to an empty prompt.
func (cw *Window) clearLine() {
	cw.walker = nil
	cw.setTyped("")
}

// submit strips the prompt, records history, resets the line and evaluates
// the trimmed text. Terminal dimensions are pushed first if they changed
// since the last push, since output wrapping depends on the width.
func (cw *Window) submit() {
	text := strings.TrimSpace(cw.typed())
	end := cw.endPos()
	if err := cw.w.MoveCursor(cw.cursorPos(), end); err != nil {
		cw.logger.Warn("cursor move failed", zap.Error(err))
	}
	cw.w.WriteString("\r\n")

	if cw.promptState != notify.PromptInput && cw.hist.Add(text) && cw.st != nil {
		if _, err := cw.st.AddCmd(text); err != nil {
			cw.logger.Warn("history persist failed", zap.Error(err))
		}
	}
	cw.walker = nil
	cw.anchor = noAnchor
	cw.line = cw.prompt
	cw.cursor = 0
	cw.partial = nil
	cw.w.WriteString(cw.prompt)

	if cw.rows != cw.sentRows || cw.cols != cw.sentCols {
		cw.sess.SendDimensions(cw.rows, cw.cols)
		cw.sentRows, cw.sentCols = cw.rows, cw.cols
	}
	// Rejection of the returned future means the session went away; the
	// submission is simply abandoned.
	cw.sess.Eval(text)
}

// onSessionEvent dispatches typed session events into the window.
func (cw *Window) onSessionEvent(e session.Event) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	switch e := e.(type) {
	case session.Output:
		cw.writeOutput(e)
	case session.Cleared:
		cw.clearScreen()
	case session.Prompt:
		cw.setPromptState(e.State)
	case session.StateChanged:
		if e.New != session.Ready {
			// Disconnection clears visible state; history survives.
			cw.resetVisible()
		}
	}
}

// setPromptState changes the prompt string while preserving the typed text.
func (cw *Window) setPromptState(state notify.PromptState) {
	if state == cw.promptState {
		return
	}
	cw.invalidateCompletion()
	old := cw.cursorPos()
	typed := cw.typed()
	cw.promptState = state
	cw.prompt = cw.mode().prompt
	cw.line = cw.prompt + typed
	if cw.cursor > len(typed) {
		cw.cursor = len(typed)
	}
	cw.redrawFrom(old, 0)
}

// resetVisible clears the line to an empty prompt without touching history.
func (cw *Window) resetVisible() {
	cw.invalidateCompletion()
	cw.walker = nil
	old := cw.cursorPos()
	cw.anchor = noAnchor
	cw.prompt = cw.mode().prompt
	cw.line = cw.prompt
	cw.cursor = 0
	cw.redrawFrom(old, 0)
}

// History returns the submitted commands, oldest first.
func (cw *Window) History() []string {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return append([]string(nil), cw.hist.All()...)
}

// Line returns the current visible line and cursor offset, for inspection.
func (cw *Window) Line() (line string, cursor int) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.line, cw.cursor
}

// Selection returns the selected typed-text range; from == to means none.
func (cw *Window) Selection() (from, to int) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.selection()
}
