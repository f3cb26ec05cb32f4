// Package run translates editor-level execution commands (run file, run
// section, run selection) into remote evaluation calls, resolving path
// shadowing interactively where the runtime allows it.
package run

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/replkit/replkit/pkg/cmdwin"
	"github.com/replkit/replkit/pkg/section"
	"github.com/replkit/replkit/pkg/session"
)

// Kind classifies a file with respect to the runtime search path.
type Kind string

const (
	WillRun           Kind = "willRun"
	NotOnPath         Kind = "notOnPath"
	ShadowedByPwd     Kind = "shadowedByPwd"
	ShadowedByToolbox Kind = "shadowedByTbx"
	// Compiled-artifact shadow kinds. These have no interactive remedy.
	ShadowedByPcode   Kind = "shadowedByPfile"
	ShadowedByMex     Kind = "shadowedByMex"
	ShadowedByBuiltin Kind = "shadowedByBuiltin"
)

// Choice is the user's answer to a shadow-resolution prompt.
type Choice int

const (
	Cancel Choice = iota
	AddToPath
	ChangeDirectory
)

// Prompter asks the user how to resolve a file the runtime would not run
// as-is. Implementations block until the user answers.
type Prompter interface {
	ResolveShadow(file string, kind Kind) Choice
}

// Runner executes editor run commands against a session. Run selection goes
// through the command window so it lands in history; file and section runs
// evaluate directly.
type Runner struct {
	sess     *session.Session
	win      *cmdwin.Window
	prompter Prompter
	logger   *zap.Logger
}

// New returns a Runner. win may be nil if run-selection is not needed.
func New(sess *session.Session, win *cmdwin.Window, prompter Prompter, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{sess: sess, win: win, prompter: prompter, logger: logger}
}

// CommandName derives the runnable command name from a file path. A single
// class folder (@ClassName) and any number of namespace folders (+pkg) each
// contribute a dotted segment before the file's base name.
func CommandName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(path)

	if b := filepath.Base(dir); strings.HasPrefix(b, "@") && len(b) > 1 {
		name = b[1:] + "." + name
		dir = filepath.Dir(dir)
	}
	for {
		b := filepath.Base(dir)
		if !strings.HasPrefix(b, "+") || len(b) == 1 {
			break
		}
		name = b[1:] + "." + name
		dir = filepath.Dir(dir)
	}
	return name
}

// runnability is the shape of the path-resolution feval result.
type runnability struct {
	Status Kind `json:"status"`
}

// RunFile resolves the file's command name, classifies it against the
// runtime path and either evaluates it, prompts the user for a remedy, or
// fails with a terminal shadow error. Session rejections abort silently.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	result, err := r.sess.Feval("getRunnability", 1, path).Get(ctx)
	if err != nil {
		// Session became unavailable; the action simply does not complete.
		r.logger.Debug("runnability query abandoned", zap.Error(err))
		return nil
	}
	if result.IsError() || len(result.Values) == 0 {
		r.logger.Debug("runnability query failed", zap.Any("result", result))
		return nil
	}
	var rb runnability
	if err := json.Unmarshal(result.Values[0], &rb); err != nil {
		r.logger.Debug("runnability result malformed", zap.Error(err))
		return nil
	}

	name := CommandName(path)
	dir := filepath.Dir(path)
	switch rb.Status {
	case WillRun:
		return r.eval(ctx, name)
	case NotOnPath, ShadowedByToolbox:
		return r.resolve(ctx, path, dir, name, rb.Status, true)
	case ShadowedByPwd:
		// Adding to the path cannot outrank the working directory; the only
		// remedy is to move there.
		return r.resolve(ctx, path, dir, name, rb.Status, false)
	default:
		return fmt.Errorf("run: %s is shadowed (%s) and cannot be run", path, rb.Status)
	}
}

// resolve prompts the user and applies the chosen remedy before evaluating.
func (r *Runner) resolve(ctx context.Context, path, dir, name string, kind Kind, addAllowed bool) error {
	if r.prompter == nil {
		return nil
	}
	switch choice := r.prompter.ResolveShadow(path, kind); choice {
	case AddToPath:
		if !addAllowed {
			return nil
		}
		if _, err := r.sess.Feval("addpath", 0, dir).Get(ctx); err != nil {
			return nil
		}
	case ChangeDirectory:
		if _, err := r.sess.Feval("cd", 0, dir).Get(ctx); err != nil {
			return nil
		}
	default:
		return nil
	}
	return r.eval(ctx, name)
}

func (r *Runner) eval(ctx context.Context, command string) error {
	if _, err := r.sess.Eval(command).Get(ctx); err != nil {
		r.logger.Debug("evaluation abandoned", zap.Error(err))
	}
	return nil
}

// RunSection runs the section containing line. Older runtimes take a
// (startOffset, length) character span; newer ones take a (startLine,
// endLine, allSectionBoundaries) triple. Either way the evaluation carries
// a capability removal so section execution cannot open nested debug
// sessions.
func (r *Runner) RunSection(ctx context.Context, idx *section.Index, file, src string, line int) error {
	sec, ok, err := idx.Find(line)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	fn := "executeRange"
	var args []any
	if useLineProtocol(r.sess.Release()) {
		all, err := idx.All()
		if err != nil {
			return err
		}
		boundaries := make([][2]int, len(all))
		for i, s := range all {
			boundaries[i] = [2]int{s.StartLine, s.EndLine}
		}
		fn = "executeSection"
		args = []any{file, sec.StartLine, sec.EndLine, boundaries}
	} else {
		offset, length := charSpan(src, sec.StartLine, sec.EndLine)
		args = []any{file, offset, length}
	}
	if _, err := r.sess.FevalWith(fn, 0, args, []string{"debugging"}).Get(ctx); err != nil {
		r.logger.Debug("section run abandoned", zap.Error(err))
	}
	return nil
}

// RunSelection submits the selected text through the command window, so it
// appears in history exactly like a typed command.
func (r *Runner) RunSelection(text string) {
	if r.win == nil {
		return
	}
	r.win.Submit(text)
}

// useLineProtocol reports whether the runtime release understands the
// line-triple section protocol, introduced in R2022a.
func useLineProtocol(release string) bool {
	if len(release) < 6 || release[0] != 'R' {
		return false
	}
	year, err := strconv.Atoi(release[1:5])
	if err != nil {
		return false
	}
	return year >= 2022
}

// charSpan converts an inclusive line range into a character offset and
// length within src, counted in runes; the range protocol addresses
// characters, not bytes. The span covers the lines' text without the
// trailing newline.
func charSpan(src string, startLine, endLine int) (offset, length int) {
	lines := strings.Split(src, "\n")
	total := utf8.RuneCountInString(src)
	if startLine >= len(lines) {
		return total, 0
	}
	for i := 0; i < startLine; i++ {
		offset += utf8.RuneCountInString(lines[i]) + 1
	}
	end := offset
	for i := startLine; i <= endLine && i < len(lines); i++ {
		end += utf8.RuneCountInString(lines[i]) + 1
	}
	end-- // drop the final newline (or the phantom one past EOF)
	if end > total {
		end = total
	}
	return offset, end - offset
}
