package cmdwin

import (
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	lsp "github.com/sourcegraph/go-lsp"

	"github.com/replkit/replkit/pkg/notify"
)

// completion holds the single-slot tab-completion state. At most one request
// is in flight; any edit, cursor move or Escape invalidates both the pending
// request and the cached cycle list.
type completion struct {
	pendingID string
	items     []string
	index     int
	from, to  int // typed-text span the applied item replaces
}

// invalidateCompletion abandons the in-flight request (a late response whose
// ID no longer matches is ignored) and drops the cached list.
func (cw *Window) invalidateCompletion() {
	cw.comp = completion{}
}

// completeNext requests completions on the first Tab and cycles forward
// through the cached list on repeated presses.
func (cw *Window) completeNext() {
	if len(cw.comp.items) > 0 {
		cw.cycleCompletion(1)
		return
	}
	cw.requestCompletion()
}

// completePrev cycles backward through the cached list.
func (cw *Window) completePrev() {
	if len(cw.comp.items) > 0 {
		cw.cycleCompletion(-1)
	}
}

func (cw *Window) requestCompletion() {
	id := uuid.NewString()
	cw.comp = completion{pendingID: id}
	cw.sess.RequestCompletions(id, cw.typed(), cw.cursor)
}

func (cw *Window) cycleCompletion(step int) {
	n := len(cw.comp.items)
	cw.comp.index = (cw.comp.index + step + n) % n
	cw.applyCompletion(cw.comp.items[cw.comp.index])
}

// applyCompletion replaces the current completion span with text, keeping
// the cached list valid for further cycling.
func (cw *Window) applyCompletion(text string) {
	old := cw.cursorPos()
	t := cw.typed()
	if cw.comp.from > len(t) || cw.comp.to > len(t) {
		cw.invalidateCompletion()
		return
	}
	cw.anchor = noAnchor
	cw.line = cw.prompt + t[:cw.comp.from] + text + t[cw.comp.to:]
	cw.cursor = cw.comp.from + len(text)
	cw.comp.to = cw.comp.from + len(text)
	cw.redrawFrom(old, cw.comp.from)
}

// onCompletionResponse installs the completion list if it answers the
// in-flight request; stale responses are discarded.
func (cw *Window) onCompletionResponse(m notify.Message) {
	resp, ok := m.(notify.CompletionResponse)
	if !ok {
		return
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.comp.pendingID == "" || resp.RequestID != cw.comp.pendingID {
		return
	}
	cw.comp.pendingID = ""
	if len(resp.Items) == 0 {
		return
	}
	items := make([]string, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, itemText(it))
	}
	// Replace the token the cursor is in or adjacent to; insert at the
	// cursor when not inside a token.
	from, to, ok := tokenSpan(cw.typed(), cw.cursor)
	if !ok {
		from, to = cw.cursor, cw.cursor
	}
	cw.comp.items = items
	cw.comp.index = 0
	cw.comp.from, cw.comp.to = from, to
	cw.applyCompletion(items[0])
}

func itemText(it lsp.CompletionItem) string {
	if it.InsertText != "" {
		return it.InsertText
	}
	return it.Label
}

// Token classification for completion replacement. Quoted strings, numeric
// literals and bareword identifiers are distinct token classes; when a
// character run could start more than one class, the class that begins
// first in a left-to-right scan wins (quoted strings swallow everything to
// the closing quote, a leading digit makes a numeric literal).
type tokenClass int

const (
	tokenNone tokenClass = iota
	tokenQuoted
	tokenNumber
	tokenWord
)

type token struct {
	from, to int
	class    tokenClass
}

// tokenSpan returns the span of the token the cursor is inside or sitting
// at the right edge of.
func tokenSpan(text string, cursor int) (from, to int, ok bool) {
	for _, tok := range scanTokens(text) {
		if tok.from < cursor && cursor < tok.to {
			return tok.from, tok.to, true
		}
		if cursor == tok.to {
			return tok.from, tok.to, true
		}
	}
	return 0, 0, false
}

// scanTokens performs a single left-to-right scan of text.
func scanTokens(text string) []token {
	var tokens []token
	i := 0
	for i < len(text) {
		r, n := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == '\'' || r == '"':
			tokens = append(tokens, scanQuoted(text, i, r))
		case unicode.IsDigit(r):
			tokens = append(tokens, scanNumber(text, i))
		case isWordStart(r):
			tokens = append(tokens, scanWord(text, i))
		default:
			i += n
			continue
		}
		i = tokens[len(tokens)-1].to
	}
	return tokens
}

// scanQuoted consumes a quoted string, honoring the doubled-quote escape.
// An unterminated string extends to the end of the text.
func scanQuoted(text string, start int, quote rune) token {
	i := start + 1
	for i < len(text) {
		r, n := utf8.DecodeRuneInString(text[i:])
		i += n
		if r == quote {
			if i < len(text) && rune(text[i]) == quote {
				i++ // escaped quote
				continue
			}
			break
		}
	}
	return token{start, i, tokenQuoted}
}

// scanNumber consumes a numeric literal: digits, a decimal point, and an
// exponent part.
func scanNumber(text string, start int) token {
	i := start
	seenDot, seenExp := false, false
	for i < len(text) {
		c := text[i]
		switch {
		case c >= '0' && c <= '9':
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && !seenExp && i > start:
			// Only an exponent if followed by a digit or sign+digit.
			j := i + 1
			if j < len(text) && (text[j] == '+' || text[j] == '-') {
				j++
			}
			if j >= len(text) || text[j] < '0' || text[j] > '9' {
				return token{start, i, tokenNumber}
			}
			seenExp = true
			i = j - 1
		default:
			return token{start, i, tokenNumber}
		}
		i++
	}
	return token{start, i, tokenNumber}
}

// scanWord consumes a bareword identifier, including dotted field access.
func scanWord(text string, start int) token {
	i := start
	for i < len(text) {
		r, n := utf8.DecodeRuneInString(text[i:])
		if !isWordRune(r) {
			break
		}
		i += n
	}
	return token{start, i, tokenWord}
}

func isWordStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}
