package brain

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	// Alternating runs of word and non-word characters
	tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+|[^\p{L}\p{M}\p{N}_]+`)
	spacePattern = regexp.MustCompile(`\s+`)
	wordPattern  = regexp.MustCompile(`^[\p{L}\p{M}\p{N}_]+$`)
)

// Tokenize splits text into alternating word and separator tokens.
// Text is NFC-normalised and lowercased; whitespace runs inside a
// separator collapse to one space. Joining the tokens reproduces the
// trimmed text up to case and spacing.
func Tokenize(text string) []string {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return nil
	}
	lower := cases.Lower(language.Und)
	raw := tokenPattern.FindAllString(text, -1)
	tokens := make([]string, len(raw))
	for i, tok := range raw {
		tokens[i] = lower.String(spacePattern.ReplaceAllString(tok, " "))
	}
	return tokens
}

// IsWord reports whether a token is a word rather than a separator
func IsWord(token string) bool {
	return wordPattern.MatchString(token)
}

// Render joins generated tokens into display text, capitalising the
// first word of each sentence and closing an unterminated final
// sentence with a period.
func Render(tokens []string) string {
	title := cases.Title(language.Und, cases.NoLower)

	var sb strings.Builder
	sentenceStart := true
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if sentenceStart {
			sb.WriteString(title.String(tok))
		} else {
			sb.WriteString(tok)
		}
		sentenceStart = strings.ContainsAny(tok[:1], ".?!")
	}
	if !sentenceStart {
		sb.WriteByte('.')
	}
	return sb.String()
}
