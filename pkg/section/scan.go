package section

import "strings"

// Scan splits src into sections at explicit "%%" marker lines. A marker is a
// line whose content, after leading whitespace, is "%%" alone or "%%"
// followed by a space. The marker line itself starts its section. Code
// before the first marker forms an implicit leading section; a file with no
// markers yields a single implicit section spanning the whole file.
//
// The result is ordered by appearance and is valid input for Build.
func Scan(src string) []Section {
	if src == "" {
		return nil
	}
	lines := strings.Split(src, "\n")
	// Drop the phantom line after a trailing newline.
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var starts []int
	for i, line := range lines {
		if isMarker(line) {
			starts = append(starts, i)
		}
	}

	var out []Section
	if len(starts) == 0 {
		return []Section{{StartLine: 0, EndLine: len(lines) - 1}}
	}
	if starts[0] > 0 {
		out = append(out, Section{StartLine: 0, EndLine: starts[0] - 1})
	}
	for i, start := range starts {
		end := len(lines) - 1
		if i+1 < len(starts) {
			end = starts[i+1] - 1
		}
		out = append(out, Section{StartLine: start, EndLine: end, Explicit: true})
	}
	return out
}

func isMarker(line string) bool {
	t := strings.TrimLeft(line, " \t")
	return t == "%%" || strings.HasPrefix(t, "%% ")
}
