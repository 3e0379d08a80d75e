package content

import (
	"regexp"
	"strings"
)

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// Merge joins chunk answers, dropping any sentence that is a case-insensitive
// substring or superstring of one already accepted. First-seen order is kept.
// Returns "" when no sentence survives.
func Merge(responses []string) string {
	var accepted, lowered []string

	for _, resp := range responses {
		for _, sentence := range sentenceBoundary.Split(resp, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			lower := strings.ToLower(sentence)
			if containsEither(lowered, lower) {
				continue
			}
			accepted = append(accepted, sentence)
			lowered = append(lowered, lower)
		}
	}

	if len(accepted) == 0 {
		return ""
	}
	return strings.Join(accepted, ". ") + "."
}
