package histutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestListAdd(t *testing.T) {
	l := NewList()
	if !l.Add("x=1") {
		t.Errorf("Add(x=1) not kept")
	}
	if l.Add("") {
		t.Errorf("empty command kept")
	}
	if l.Add("x=1") {
		t.Errorf("immediate duplicate kept")
	}
	if !l.Add("y=2") {
		t.Errorf("Add(y=2) not kept")
	}
	if !l.Add("x=1") {
		t.Errorf("non-immediate duplicate not kept")
	}
	want := []string{"x=1", "y=2", "x=1"}
	if diff := cmp.Diff(want, l.All()); diff != "" {
		t.Errorf("All (-want +got):\n%s", diff)
	}
}

// Walking with an empty live line visits the full history, newest first.
func TestWalkerFullHistory(t *testing.T) {
	w := NewWalker([]string{"x=1", "y=2"}, "")
	if err := w.Prev(); err != nil {
		t.Fatal(err)
	}
	if got := w.Current(); got != "y=2" {
		t.Errorf("first Prev -> %q, want y=2", got)
	}
	if err := w.Prev(); err != nil {
		t.Fatal(err)
	}
	if got := w.Current(); got != "x=1" {
		t.Errorf("second Prev -> %q, want x=1", got)
	}
	if err := w.Prev(); err != ErrEndOfHistory {
		t.Errorf("Prev past oldest: err=%v, want ErrEndOfHistory", err)
	}
}

// Prefix filtering only visits matching entries (case-insensitively) and
// never recomputes mid-session.
func TestWalkerPrefixFilter(t *testing.T) {
	raw := []string{"foo=1", "bar=2", "foobar=3"}
	w := NewWalker(raw, "foo")

	var visited []string
	for w.Prev() == nil {
		visited = append(visited, w.Current())
	}
	want := []string{"foobar=3", "foo=1"}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Errorf("visited (-want +got):\n%s", diff)
	}
}

func TestWalkerCaseInsensitive(t *testing.T) {
	w := NewWalker([]string{"Plot(x)", "disp(x)"}, "pl")
	if err := w.Prev(); err != nil {
		t.Fatal(err)
	}
	if got := w.Current(); got != "Plot(x)" {
		t.Errorf("Prev -> %q, want Plot(x)", got)
	}
}

// Walking down past the newest entry restores the live line, not an empty
// one.
func TestWalkerRestoresLiveLine(t *testing.T) {
	w := NewWalker([]string{"abc=1"}, "ab")
	if err := w.Prev(); err != nil {
		t.Fatal(err)
	}
	if got := w.Current(); got != "abc=1" {
		t.Fatalf("Prev -> %q, want abc=1", got)
	}
	if err := w.Next(); err != nil {
		t.Fatal(err)
	}
	if !w.AtLive() {
		t.Errorf("not at live line after walking back down")
	}
	if got := w.Current(); got != "ab" {
		t.Errorf("Current at live = %q, want ab", got)
	}
	if err := w.Next(); err != ErrEndOfHistory {
		t.Errorf("Next past live: err=%v, want ErrEndOfHistory", err)
	}
}

// Multi-line entries match the filter against the whole flattened string.
func TestWalkerMultiLineEntries(t *testing.T) {
	raw := []string{"a=1\nb=2", "c=3"}
	w := NewWalker(raw, "a=")
	if err := w.Prev(); err != nil {
		t.Fatal(err)
	}
	if got := w.Current(); got != "a=1\nb=2" {
		t.Errorf("Prev -> %q, want the multi-line entry", got)
	}
}
