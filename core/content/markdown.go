package content

import (
	"regexp"
	"strings"
)

// Markdown is the lingua franca of notice bodies and AI generated documents;
// student previews want plain text.

var (
	mdHeadingRegex  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphasisRegex = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)([^*_~]+?)(\*{1,3}|_{1,3}|~~)`)
	mdLinkRegex     = regexp.MustCompile(`!?\[([^\]]*)]\(([^)]*)\)`)
	mdCodeRegex     = regexp.MustCompile("`([^`]*)`")
	mdListRegex     = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	mdQuoteRegex    = regexp.MustCompile(`(?m)^>\s?`)
	mdRuleRegex     = regexp.MustCompile(`(?m)^(?:-{3,}|\*{3,}|_{3,})\s*$`)
)

// PlainText strips Markdown syntax from s, leaving readable plain text.
// Malformed input comes through unchanged rather than erroring.
func PlainText(s string) string {
	// fenced code blocks keep their content, lose the fences
	s = strings.ReplaceAll(s, "```", "")

	s = mdHeadingRegex.ReplaceAllString(s, "")
	s = mdRuleRegex.ReplaceAllString(s, "")
	s = mdLinkRegex.ReplaceAllString(s, "$1")
	s = mdEmphasisRegex.ReplaceAllString(s, "$2")
	s = mdCodeRegex.ReplaceAllString(s, "$1")
	s = mdListRegex.ReplaceAllString(s, "")
	s = mdQuoteRegex.ReplaceAllString(s, "")

	// collapse the blank-line runs left behind
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	var prevBlank bool
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		blank := line == ""
		if blank && prevBlank {
			continue
		}
		out = append(out, line)
		prevBlank = blank
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
