package cluster

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/paaexplorer/pkg/utils"
)

var stopWords = map[string]struct{}{
	"what": {}, "how": {}, "why": {}, "when": {}, "where": {},
	"is": {}, "are": {}, "the": {}, "a": {}, "an": {},
	"and": {}, "or": {}, "but": {}, "to": {}, "for": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "by": {},
}

// Label derives a short name for a cluster from its member texts: the two
// most frequent significant words, capitalized. Ties go to the word seen first.
func Label(texts []string, id int) string {
	counts := make(map[string]int)
	var order []string
	for _, t := range texts {
		for _, tok := range strings.Fields(strings.ToLower(t)) {
			tok = strings.TrimFunc(tok, func(r rune) bool {
				return unicode.IsPunct(r) || unicode.IsSymbol(r)
			})
			if utf8.RuneCountInString(tok) <= 2 {
				continue
			}
			if _, stop := stopWords[tok]; stop {
				continue
			}
			if counts[tok] == 0 {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}
	if len(order) == 0 {
		return fmt.Sprintf("Cluster %d", id+1)
	}

	top := make([]string, 0, 2)
	for len(top) < 2 && len(order) > 0 {
		best := 0
		for i, w := range order {
			if counts[w] > counts[order[best]] {
				best = i
			}
		}
		top = append(top, utils.Capitalize(order[best]))
		order = append(order[:best], order[best+1:]...)
	}
	return strings.Join(top, " ")
}
