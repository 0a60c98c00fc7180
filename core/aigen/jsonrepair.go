package aigen

import (
	"regexp"
	"strings"
)

// Models asked for JSON routinely wrap it in Markdown fences, prepend prose,
// or leave trailing commas. RepairJSON salvages the JSON value; if nothing
// salvageable is found the input comes back unchanged so the caller can
// surface it as-is.

var (
	fenceRegex         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)
)

func RepairJSON(s string) string {
	orig := s

	// prefer fenced content when present
	if m := fenceRegex.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.TrimSpace(s)

	// trim to the outermost JSON value
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return orig
	}
	open := s[start]
	close_ := byte('}')
	if open == '[' {
		close_ = ']'
	}
	end := strings.LastIndexByte(s, close_)
	if end <= start {
		return orig
	}
	s = s[start : end+1]

	// drop trailing commas before a closing brace/bracket
	s = trailingCommaRegex.ReplaceAllString(s, "$1")

	return s
}
