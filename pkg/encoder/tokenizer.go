package encoder

import (
	"strings"
	"unicode"
)

// Tokenizer splits a document into tokens.
type Tokenizer func(doc string) []string

const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// DefaultTokenizer lower-cases doc, deletes punctuation and splits on whitespace.
// "Don't stop!" becomes ["dont", "stop"].
func DefaultTokenizer(doc string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || strings.ContainsRune(asciiPunctuation, r) {
			return -1
		}
		return r
	}, strings.ToLower(doc))
	return strings.Fields(cleaned)
}
