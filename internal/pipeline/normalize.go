package pipeline

import (
	"html"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hyperjump/paaexplorer/pkg/utils"
)

// Default text bounds. Candidates must be strictly longer than the minimum and
// strictly shorter than the maximum, counted in characters.
const (
	DefaultMinTextLength = 10
	DefaultMaxTextLength = 200
)

// Normalizer turns raw candidate strings into question text.
type Normalizer struct {
	policy *bluemonday.Policy
	minLen int
	maxLen int
}

// NewNormalizer returns a Normalizer with the given bounds; non-positive values use the defaults.
func NewNormalizer(minLen, maxLen int) *Normalizer {
	if minLen <= 0 {
		minLen = DefaultMinTextLength
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	return &Normalizer{policy: bluemonday.StrictPolicy(), minLen: minLen, maxLen: maxLen}
}

// Normalize strips markup, unescapes entities and collapses whitespace.
// ok is false when the result falls outside the length bounds.
func (n *Normalizer) Normalize(raw string) (text string, ok bool) {
	text = n.policy.Sanitize(raw)
	text = html.UnescapeString(text)
	text = utils.CollapseWhitespace(text)
	l := utf8.RuneCountInString(text)
	return text, l > n.minLen && l < n.maxLen
}
