package section

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sec(start, end int) Section     { return Section{StartLine: start, EndLine: end, Explicit: true} }
func leading(start, end int) Section { return Section{StartLine: start, EndLine: end} }

func TestFind(t *testing.T) {
	tree := Build([]Section{sec(0, 4), sec(5, 9)})
	tests := []struct {
		line int
		want Section
		ok   bool
	}{
		{3, sec(0, 4), true},
		{0, sec(0, 4), true},
		{4, sec(0, 4), true},
		{7, sec(5, 9), true},
		{5, sec(5, 9), true},
		{9, sec(5, 9), true},
		{10, Section{}, false},
	}
	for _, test := range tests {
		got, ok := tree.Find(test.line)
		if got != test.want || ok != test.ok {
			t.Errorf("Find(%d) = (%v, %v), want (%v, %v)",
				test.line, got, ok, test.want, test.ok)
		}
	}
}

func TestFindNested(t *testing.T) {
	// Outer sections with one nested inside each; Find returns the deepest.
	tree := Build([]Section{sec(0, 9), sec(2, 4), sec(10, 19), sec(12, 18), sec(13, 14)})
	tests := []struct {
		line int
		want Section
	}{
		{0, sec(0, 9)},
		{3, sec(2, 4)},
		{5, sec(0, 9)},
		{11, sec(10, 19)},
		{13, sec(13, 14)},
		{16, sec(12, 18)},
		{19, sec(10, 19)},
	}
	for _, test := range tests {
		got, ok := tree.Find(test.line)
		if !ok || got != test.want {
			t.Errorf("Find(%d) = (%v, %v), want (%v, true)", test.line, got, ok, test.want)
		}
	}
}

func TestFindEmptyTree(t *testing.T) {
	if _, ok := Build(nil).Find(0); ok {
		t.Errorf("Find on empty tree reported a section")
	}
}

var scanTests = []struct {
	name string
	src  string
	want []Section
}{
	{"empty", "", nil},
	{"no markers", "a = 1\nb = 2\n", []Section{leading(0, 1)}},
	{"marker at top", "%% first\nx = 1\n%% second\ny = 2\n",
		[]Section{sec(0, 1), sec(2, 3)}},
	{"implicit leading", "setup\n%% work\nx = 1\n",
		[]Section{leading(0, 0), sec(1, 2)}},
	{"indented marker", "x\n  %% part\ny\n",
		[]Section{leading(0, 0), sec(1, 2)}},
	{"marker without trailing newline", "%%", []Section{sec(0, 0)}},
	{"percent comment is not a marker", "% comment\nx\n", []Section{leading(0, 1)}},
	{"three percent signs is not a marker", "%%% heading\nx\n", []Section{leading(0, 1)}},
}

func TestScan(t *testing.T) {
	for _, test := range scanTests {
		got := Scan(test.src)
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%s: Scan (-want +got):\n%s", test.name, diff)
		}
	}
}

func TestIndexDirty(t *testing.T) {
	x := NewIndex()
	x.Update(Build([]Section{sec(0, 4)}))
	if _, ok, err := x.Find(2); err != nil || !ok {
		t.Fatalf("Find on clean index failed: ok=%v err=%v", ok, err)
	}
	x.MarkDirty()
	if _, _, err := x.Find(2); err != ErrStale {
		t.Errorf("Find on dirty index: err=%v, want ErrStale", err)
	}
	if _, err := x.All(); err != ErrStale {
		t.Errorf("All on dirty index: err=%v, want ErrStale", err)
	}
	x.Update(Build([]Section{sec(0, 4)}))
	if _, ok, err := x.Find(2); err != nil || !ok {
		t.Errorf("Find after Update failed: ok=%v err=%v", ok, err)
	}
}

func TestWatcherRebuilds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.m")
	if err := os.WriteFile(path, []byte("%% one\nx=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	x := NewIndex()
	w, err := Watch(path, x, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if s, ok, err := x.Find(1); err != nil || !ok || !s.Explicit {
		t.Fatalf("initial index not built: %v %v %v", s, ok, err)
	}

	if err := os.WriteFile(path, []byte("%% one\nx=1\n%% two\ny=2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s, ok, err := x.Find(3)
		if err == nil && ok && s.StartLine == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("index was not rebuilt after write")
}
