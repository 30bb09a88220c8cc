package session

import (
	"strings"
	"unicode"

	"github.com/semlens/semlens-mcp/pkg/types"
)

// singleCues are pronouns and continuation words that almost always refer
// back to the previous exchange. Matched as whole tokens so "and" never
// fires inside "android".
var singleCues = map[string]struct{}{
	"it": {}, "this": {}, "that": {}, "they": {}, "them": {},
	"these": {}, "those": {}, "he": {}, "she": {}, "his": {},
	"her": {}, "their": {}, "its": {}, "and": {}, "also": {}, "too": {},
}

// phraseCues are matched as substrings of the lowercased question.
var phraseCues = []string{
	"what about", "how about", "can you", "could you", "would you", "will you",
}

// languageKeywords are matched as whole tokens; short names like "go"
// would otherwise fire inside unrelated words.
var languageKeywords = map[string]struct{}{
	"go": {}, "golang": {}, "python": {}, "javascript": {}, "typescript": {},
	"java": {}, "ruby": {}, "rust": {}, "php": {}, "kotlin": {}, "csharp": {},
	"c#": {}, "html": {}, "css": {}, "sql": {},
}

// domainKeywords are matched as token prefixes, so "implementation" and
// "functions" count.
var domainKeywords = []string{"class", "method", "function", "file", "code", "implement"}

// IsFollowUp classifies whether a question continues the previous exchange
// (reuse the prior result set) or opens a new topic (search fresh).
//
// With fewer than two prior turns there is nothing to follow up on. A
// pronoun or continuation cue means follow-up. A question carrying code
// vocabulary is a new topic even when short; one carrying none is assumed
// to be conversational continuation.
func IsFollowUp(question string, history []types.ConversationTurn) bool {
	if len(history) < 2 {
		return false
	}

	q := strings.ToLower(question)
	tokens := tokenize(q)

	for _, token := range tokens {
		if _, ok := singleCues[token]; ok {
			return true
		}
	}
	for _, phrase := range phraseCues {
		if strings.Contains(q, phrase) {
			return true
		}
	}

	if hasCodeKeyword(tokens) {
		return false
	}
	return true
}

func hasCodeKeyword(tokens []string) bool {
	for _, token := range tokens {
		if _, ok := languageKeywords[token]; ok {
			return true
		}
		for _, kw := range domainKeywords {
			if strings.HasPrefix(token, kw) {
				return true
			}
		}
	}
	return false
}

func tokenize(q string) []string {
	fields := strings.Fields(q)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '#'
		})
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
