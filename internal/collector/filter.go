package collector

import "strings"

// KeywordFilter matches items against a union of predefined and custom
// terms, case-insensitively. An empty filter accepts everything.
type KeywordFilter struct {
	terms []string
}

// NewKeywordFilter builds a filter from predefined and custom term lists.
// Terms are lowercased and deduplicated; blank terms are dropped.
func NewKeywordFilter(predefined, custom []string) *KeywordFilter {
	seen := make(map[string]struct{})
	var terms []string
	for _, term := range append(append([]string{}, predefined...), custom...) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return &KeywordFilter{terms: terms}
}

// Empty reports whether the filter has no terms.
func (f *KeywordFilter) Empty() bool {
	return f == nil || len(f.terms) == 0
}

// Match reports whether title+body contain any term, and which terms hit.
// An empty filter accepts all items with no matched terms.
func (f *KeywordFilter) Match(title, body string) (bool, []string) {
	if f.Empty() {
		return true, nil
	}

	haystack := strings.ToLower(title + " " + body)
	var matched []string
	for _, term := range f.terms {
		if strings.Contains(haystack, term) {
			matched = append(matched, term)
		}
	}
	return len(matched) > 0, matched
}
