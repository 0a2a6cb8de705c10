// Package highlight marks search hits inside rendered, possibly styled,
// transcript text.
package highlight

import (
	"regexp"
	"strings"
)

var ansiCSI = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

type Result struct {
	Text  string
	Count int
	// Lines lists the zero-based lines holding at least one hit.
	Lines []int
}

// Mark wraps every case-insensitive occurrence of query with wrap. Escape
// sequences are left untouched and a hit never spans one.
func Mark(input, query string, wrap func(string) string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Text: input}
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}

	lines := strings.Split(input, "\n")
	res := Result{}
	for i, line := range lines {
		marked, n := markStyled(line, query, wrap)
		lines[i] = marked
		if n > 0 {
			res.Count += n
			res.Lines = append(res.Lines, i)
		}
	}
	res.Text = strings.Join(lines, "\n")
	return res
}

func markStyled(s, query string, wrap func(string) string) (string, int) {
	seqs := ansiCSI.FindAllStringIndex(s, -1)
	if len(seqs) == 0 {
		return markPlain(s, query, wrap)
	}

	var out strings.Builder
	total, pos := 0, 0
	for _, seq := range seqs {
		marked, n := markPlain(s[pos:seq[0]], query, wrap)
		out.WriteString(marked)
		out.WriteString(s[seq[0]:seq[1]])
		total += n
		pos = seq[1]
	}
	marked, n := markPlain(s[pos:], query, wrap)
	out.WriteString(marked)
	return out.String(), total + n
}

func markPlain(s, query string, wrap func(string) string) (string, int) {
	if s == "" {
		return s, 0
	}
	lower := strings.ToLower(s)
	q := strings.ToLower(query)
	// Lowercasing can change byte lengths for some runes; fall back to no
	// marking rather than slicing at the wrong offsets.
	if len(lower) != len(s) || !strings.Contains(lower, q) {
		return s, 0
	}

	var out strings.Builder
	count, start := 0, 0
	for {
		rel := strings.Index(lower[start:], q)
		if rel < 0 {
			out.WriteString(s[start:])
			return out.String(), count
		}
		idx := start + rel
		end := idx + len(q)
		out.WriteString(s[start:idx])
		out.WriteString(wrap(s[idx:end]))
		count++
		start = end
	}
}
