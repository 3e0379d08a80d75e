package content

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// TruncationMarker ends a summary that had to drop sections.
const TruncationMarker = "... (additional content truncated)"

var (
	doctypePattern    = regexp.MustCompile(`(?i)<!DOCTYPE[^>]*>`)
	commentPattern    = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlTagPattern    = regexp.MustCompile(`(?i)</?[a-z][^<>]*>`)
	statusCodePattern = regexp.MustCompile(`(?i)\b(status code|code|HTTP) \d{3}\b`)
	statusLinePattern = regexp.MustCompile(`(?i)\b(response|request) status:?\s*\d+`)
	spaceRunPattern   = regexp.MustCompile(`[ \t\f\v]+`)

	headerLinePattern      = regexp.MustCompile(`^(Title|Description|Type|Image|Source|Status|Attachment|Main Content|Failed to fetch):`)
	interactiveLinePattern = regexp.MustCompile(`(?i)\b(button|input|link|click|style|select|download|install)\b`)
)

// Clean strips markup remnants and status-code chatter and normalizes
// whitespace. Paragraph breaks survive as a single blank line.
func Clean(text string) string {
	s := text
	// Removing a token can expose another one, so repeat until stable.
	for i := 0; i < 4; i++ {
		next := cleanOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func cleanOnce(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = doctypePattern.ReplaceAllString(s, "")
	s = commentPattern.ReplaceAllString(s, "")
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = statusCodePattern.ReplaceAllString(s, "")
	s = statusLinePattern.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(spaceRunPattern.ReplaceAllString(line, " "))
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Summarize cleans text and, when it is longer than maxLength runes, keeps
// header lines plus the information-dense body lines until the budget is
// spent. The result never exceeds maxLength runes and summarizing it again
// returns it unchanged.
func Summarize(text string, maxLength int) string {
	cleaned := Clean(text)
	if maxLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(cleaned) <= maxLength {
		return cleaned
	}

	sections := filterSections(cleaned)
	joined := strings.Join(sections, "\n\n")
	if utf8.RuneCountInString(joined) <= maxLength {
		return joined
	}

	budget := maxLength - utf8.RuneCountInString(TruncationMarker) - 2
	var b strings.Builder
	used := 0
	for _, section := range sections {
		n := utf8.RuneCountInString(section)
		sep := 0
		if used > 0 {
			sep = 2
		}
		if used+sep+n > budget {
			if used == 0 && budget > 0 {
				// The cut can complete a status token ("HTTP 4041" -> "HTTP 404").
				b.WriteString(Clean(truncateRunes(section, budget)))
			}
			break
		}
		if sep > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(section)
		used += sep + n
	}

	out := strings.TrimSpace(b.String())
	if out != "" {
		out += "\n\n"
	}
	out += TruncationMarker
	return strings.TrimSpace(truncateRunes(out, maxLength))
}

// filterSections splits on blank lines and drops short or duplicated body
// lines. Header lines are always kept.
func filterSections(text string) []string {
	var kept []string
	var seen []string

	for _, raw := range strings.Split(text, "\n\n") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if headerLinePattern.MatchString(line) {
				lines = append(lines, line)
				continue
			}
			if utf8.RuneCountInString(line) <= 10 && !interactiveLinePattern.MatchString(line) {
				continue
			}
			lower := strings.ToLower(line)
			if containsEither(seen, lower) {
				continue
			}
			seen = append(seen, lower)
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			kept = append(kept, strings.Join(lines, "\n"))
		}
	}
	return kept
}

func containsEither(accepted []string, candidate string) bool {
	for _, a := range accepted {
		if strings.Contains(a, candidate) || strings.Contains(candidate, a) {
			return true
		}
	}
	return false
}

// NormalizeWhitespace collapses every whitespace run to a single space.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes without splitting a rune.
func Truncate(s string, n int) string {
	return truncateRunes(s, n)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
