// Package analytics derives topics from visitor queries so gap analysis and
// issue clustering group similar questions under one stable key.
package analytics

import (
	"sort"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
)

// stopwords are question scaffolding that carries no topic signal.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "any": {}, "are": {}, "be": {}, "can": {},
	"could": {}, "do": {}, "does": {}, "for": {}, "from": {}, "get": {},
	"have": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "me": {},
	"my": {}, "of": {}, "on": {}, "or": {}, "please": {}, "should": {},
	"that": {}, "the": {}, "there": {}, "this": {}, "to": {}, "want": {},
	"was": {}, "we": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "will": {}, "with": {}, "would": {}, "you": {},
	"your": {},
}

const maxTopicTokens = 3

// Classifier maps free-form queries to deterministic topic keys. Identical
// input always produces the identical key, and word-order variants of the
// same question land on the same topic.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Topic returns the slug key and the human-readable label for a query.
// Queries with no content words fall back to the "general" topic.
func (c *Classifier) Topic(query string) (string, string) {
	tokens := contentTokens(query)
	if len(tokens) == 0 {
		return "general", "general"
	}

	// Alphabetical order makes the key independent of phrasing.
	sort.Strings(tokens)
	if len(tokens) > maxTopicTokens {
		tokens = tokens[:maxTopicTokens]
	}

	label := strings.Join(tokens, " ")

	return slug.Make(label), label
}

func contentTokens(query string) []string {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, query)

	seen := map[string]struct{}{}
	var tokens []string

	for _, tok := range strings.Fields(normalized) {
		tok = singular(tok)
		if len(tok) < 2 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	return tokens
}

// singular folds trivial plurals so "refund" and "refunds" share a topic.
func singular(tok string) string {
	if len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") {
		return tok[:len(tok)-1]
	}
	return tok
}
