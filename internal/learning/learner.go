package learning

import (
	"log"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/grishabot/grisha/internal/patterns"
)

// DefaultThreshold is the fast-path similarity cutoff.
const DefaultThreshold = 0.4

// updateThreshold decides when a new good reply supersedes an existing
// pattern instead of creating a fresh one.
const updateThreshold = 0.7

const minGoodResponseRunes = 15

// Replies carrying these markers are never promoted to patterns.
var failureMarkers = []string{
	"не знаю",
	"ошибка",
	"извини",
	"повтори",
	"не понял",
}

// ExchangeSink receives freshly learned exchanges, keeping retrieval in
// step with learning within the same turn.
type ExchangeSink interface {
	AddExchange(userText, botText string)
}

// Learner promotes good completed exchanges into patterns and answers the
// fast-path lookup against them.
type Learner struct {
	store  *patterns.Store
	sink   ExchangeSink
	logger *log.Logger

	mu           sync.Mutex
	interactions int
}

func New(store *patterns.Store, sink ExchangeSink, logger *log.Logger) *Learner {
	if logger == nil {
		logger = log.Default()
	}
	return &Learner{store: store, sink: sink, logger: logger}
}

// FindSimilarPattern scans the stored patterns for the best match at or
// above threshold. A hit bumps the pattern's usage counter and returns its
// response, short-circuiting full generation.
func (l *Learner) FindSimilarPattern(userMsg string, threshold float64) (string, bool) {
	var best *patterns.Pattern
	bestScore := 0.0

	all := l.store.All()
	for i := range all {
		score := Similarity(userMsg, all[i].Input)
		if score > bestScore && score >= threshold {
			bestScore = score
			best = &all[i]
		}
	}
	if best == nil {
		return "", false
	}

	l.store.IncrementUsage(best.Input)
	l.logger.Printf("learning: fast-path pattern hit (%.2f): %.50s", bestScore, best.Input)
	return best.Response, true
}

// Analyze runs after every completed exchange. Good replies are promoted:
// a near-duplicate input class gets its response replaced in place, a new
// input class becomes a new pattern and is pushed into the example index
// right away.
func (l *Learner) Analyze(userID int64, userMsg, botMsg string) {
	l.mu.Lock()
	l.interactions++
	l.mu.Unlock()

	if !isGoodResponse(botMsg) {
		return
	}

	for _, p := range l.store.All() {
		if Similarity(userMsg, p.Input) > updateThreshold {
			l.store.Update(p.Input, botMsg)
			l.logger.Printf("learning: pattern updated for user %d: %.50s", userID, p.Input)
			return
		}
	}

	l.sink.AddExchange(userMsg, botMsg)
	l.logger.Printf("learning: new pattern for user %d: %.50s", userID, userMsg)
}

func isGoodResponse(botMsg string) bool {
	if utf8.RuneCountInString(botMsg) <= minGoodResponseRunes {
		return false
	}
	lower := strings.ToLower(botMsg)
	for _, marker := range failureMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// Stats summarizes the learner's state.
type Stats struct {
	Patterns          int    `json:"patterns"`
	Interactions      int    `json:"interactions"`
	TotalPatternsUsed int    `json:"total_patterns_used"`
	MostUsedPattern   string `json:"most_used_pattern,omitempty"`
	MostUsedCount     int    `json:"most_used_count"`
	PatternsWithUsage int    `json:"patterns_with_usage"`
}

func (l *Learner) Stats() Stats {
	l.mu.Lock()
	interactions := l.interactions
	l.mu.Unlock()

	st := Stats{Interactions: interactions}
	for _, p := range l.store.All() {
		st.Patterns++
		st.TotalPatternsUsed += p.UsageCount
		if p.UsageCount > 0 {
			st.PatternsWithUsage++
		}
		if p.UsageCount > st.MostUsedCount {
			st.MostUsedCount = p.UsageCount
			st.MostUsedPattern = patterns.Truncate(p.Input, 50)
		}
	}
	return st
}

// Name extraction templates in priority order; the first match wins.
var introductionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)меня\s+зовут\s+([А-ЯЁ][а-яё]+(?:\s+[А-ЯЁ][а-яё]+)?)`),
	regexp.MustCompile(`(?i)^я\s+([А-ЯЁ][а-яё]+(?:\s+[А-ЯЁ][а-яё]+)?)$`),
	regexp.MustCompile(`(?i)мо[ёе]\s+имя\s+([А-ЯЁ][а-яё]+(?:\s+[А-ЯЁ][а-яё]+)?)`),
	regexp.MustCompile(`(?i)зовут\s+([А-ЯЁ][а-яё]+(?:\s+[А-ЯЁ][а-яё]+)?)`),
	regexp.MustCompile(`(?i)привет,\s+я\s+([А-ЯЁ][а-яё]+)`),
}

// Candidates that match a template but are not names.
var nameStopWords = map[string]struct{}{
	"зовут": {}, "имя": {}, "это": {}, "вас": {}, "тебя": {},
	"меня": {}, "мое": {}, "моё": {}, "привет": {}, "пока": {},
}

var (
	cyrillicRe = regexp.MustCompile(`[А-ЯЁа-яё]`)
	digitsRe   = regexp.MustCompile(`^[0-9]+$`)
)

// ProcessIntroduction extracts the user's name from an introduction-style
// message.
func (l *Learner) ProcessIntroduction(userID int64, message string) (string, bool) {
	for _, re := range introductionPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if _, stop := nameStopWords[strings.ToLower(name)]; stop {
			continue
		}
		if utf8.RuneCountInString(name) < 2 {
			continue
		}
		if digitsRe.MatchString(name) {
			continue
		}
		if !cyrillicRe.MatchString(name) {
			continue
		}
		l.logger.Printf("learning: extracted name %q for user %d", name, userID)
		return name, true
	}
	return "", false
}
