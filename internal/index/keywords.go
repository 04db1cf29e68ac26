package index

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Stop words never make it into the keyword index.
var stopWords = map[string]struct{}{
	"как": {}, "что": {}, "где": {}, "когда": {}, "почему": {}, "зачем": {},
	"кто": {}, "чей": {}, "привет": {}, "пока": {}, "спасибо": {},
	"пожалуйста": {}, "это": {}, "вот": {}, "ну": {},
}

// Queries that never warrant retrieval on their own.
var meaninglessQueries = map[string]struct{}{
	"давай": {}, "ок": {}, "ага": {}, "угу": {}, "хм": {}, "ээ": {},
	"ну": {}, "вот": {}, "привет": {}, "пока": {}, "спасибо": {}, "хорошо": {},
}

const (
	minKeywordRunes = 3
	maxKeywords     = 10
)

// extractKeywords returns the up-to-10 most frequent Cyrillic tokens of the
// text, ties broken by first appearance. Deterministic for identical input.
func extractKeywords(text string) []string {
	tokens := cyrillicTokens(strings.ToLower(text), minKeywordRunes)

	counts := make(map[string]int, len(tokens))
	firstSeen := make(map[string]int, len(tokens))
	order := 0
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, seen := counts[tok]; !seen {
			firstSeen[tok] = order
			order++
		}
		counts[tok]++
	}

	unique := make([]string, 0, len(counts))
	for tok := range counts {
		unique = append(unique, tok)
	}
	sort.Slice(unique, func(i, j int) bool {
		if counts[unique[i]] != counts[unique[j]] {
			return counts[unique[i]] > counts[unique[j]]
		}
		return firstSeen[unique[i]] < firstSeen[unique[j]]
	})

	if len(unique) > maxKeywords {
		unique = unique[:maxKeywords]
	}
	return unique
}

// cyrillicTokens splits text into maximal runs of Cyrillic letters and keeps
// those of at least minRunes runes.
func cyrillicTokens(text string, minRunes int) []string {
	var tokens []string
	var current []rune
	flush := func() {
		if len(current) >= minRunes {
			tokens = append(tokens, string(current))
		}
		current = current[:0]
	}
	for _, r := range text {
		if isCyrillicLetter(r) {
			current = append(current, r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

func isCyrillicLetter(r rune) bool {
	return (r >= 'а' && r <= 'я') || r == 'ё'
}

// shouldSkipQuery filters queries that are too short or meaningless to
// retrieve for.
func shouldSkipQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))

	if utf8.RuneCountInString(q) < 4 {
		return true
	}
	if len(strings.Fields(q)) == 1 && !strings.HasSuffix(q, "?") {
		return true
	}
	if _, ok := meaninglessQueries[q]; ok {
		return true
	}
	return false
}
