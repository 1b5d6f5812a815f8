package ai

import "strings"

// KeywordMatcher does the cheap first tier of approval detection: a
// case-insensitive substring match against a configured keyword list.
type KeywordMatcher struct {
	keywords []string
}

// NewKeywordMatcher creates a matcher over the given keywords.
// Keywords are lower-cased; empty entries are dropped.
func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	return &KeywordMatcher{keywords: cleaned}
}

// Matches reports whether the body contains any configured keyword
func (m *KeywordMatcher) Matches(body string) bool {
	body = strings.ToLower(body)
	for _, kw := range m.keywords {
		if strings.Contains(body, kw) {
			return true
		}
	}
	return false
}
