package memory

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"not": {}, "no": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {}, "when": {}, "use": {},
	"all": {}, "any": {}, "can": {}, "do": {}, "if": {}, "into": {},
	"about": {}, "more": {}, "only": {}, "other": {}, "some": {}, "such": {},
}

const maxAutoKeywords = 10

// ExtractKeywords derives keywords from title and content: lowercased
// word tokens, stop words and short tokens dropped, deduplicated in
// first-seen order, capped. Title tokens come first so they survive the
// cap.
func ExtractKeywords(title, content string) []string {
	seen := map[string]struct{}{}
	keywords := make([]string, 0, maxAutoKeywords)

	for _, token := range tokenize(title + " " + content) {
		if len(token) < 3 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
		if len(keywords) >= maxAutoKeywords {
			break
		}
	}
	return keywords
}

// tokenize splits text into lowercased alphanumeric runs.
func tokenize(text string) []string {
	tokens := make([]string, 0, 16)
	var sb strings.Builder

	flush := func() {
		if sb.Len() == 0 {
			return
		}
		tokens = append(tokens, sb.String())
		sb.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// uniqueTokens returns the deduplicated token set of text, optionally
// keeping only tokens longer than minLen runes.
func uniqueTokens(text string, minLen int) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range tokenize(text) {
		if len(tok) <= minLen {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}
