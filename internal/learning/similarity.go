package learning

import "strings"

// Words whose overlap weighs more than plain vocabulary.
var importantWords = map[string]struct{}{
	"зовут": {}, "имя": {}, "привет": {}, "дела": {},
	"как": {}, "ты": {}, "саша": {}, "гриша": {},
}

const minSimTokenRunes = 2

// Similarity scores how close two messages are, in [0, 1]. A substring
// relation is a cheap high-confidence 0.8; otherwise the score is token
// overlap |A∩B| / max(|A|, |B|), boosted by 1.3 (capped at 1.0) when the
// intersection contains an important word.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	aTokens := tokenSet(a)
	bTokens := tokenSet(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	common := 0
	boosted := false
	for tok := range aTokens {
		if _, ok := bTokens[tok]; !ok {
			continue
		}
		common++
		if _, important := importantWords[tok]; important {
			boosted = true
		}
	}
	if common == 0 {
		return 0
	}

	longest := len(aTokens)
	if len(bTokens) > longest {
		longest = len(bTokens)
	}
	score := float64(common) / float64(longest)
	if boosted {
		score *= 1.3
	}
	if score > 1 {
		return 1
	}
	return score
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	var current []rune
	flush := func() {
		if len(current) >= minSimTokenRunes {
			set[string(current)] = struct{}{}
		}
		current = current[:0]
	}
	for _, r := range text {
		if (r >= 'а' && r <= 'я') || r == 'ё' {
			current = append(current, r)
			continue
		}
		flush()
	}
	flush()
	return set
}
