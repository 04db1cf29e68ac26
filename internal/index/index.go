package index

import (
	"bufio"
	"encoding/json"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grishabot/grisha/internal/patterns"
)

const (
	SourceDataset = "dataset"
	SourcePattern = "pattern"
)

// Message is one side of a stored exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Exchange is a retrieval unit: a stored conversation snippet plus the
// metadata used for ranking.
type Exchange struct {
	Messages   []Message `json:"messages"`
	Source     string    `json:"source,omitempty"`
	UsageCount int       `json:"usage_count,omitempty"`
	LearnedAt  time.Time `json:"learned_at,omitempty"`
}

// AssistantContent returns the first assistant message of the exchange.
func (e Exchange) AssistantContent() (string, bool) {
	for _, m := range e.Messages {
		if m.Role == "assistant" {
			return m.Content, true
		}
	}
	return "", false
}

// Scored is a retrieval result with its position in the index, so callers
// can feed usage updates back.
type Scored struct {
	Pos      int
	Score    int
	Exchange Exchange
}

// Stats summarizes the index contents.
type Stats struct {
	Total        int `json:"total_dialogues"`
	FromDataset  int `json:"from_dataset"`
	FromPatterns int `json:"from_patterns"`
	PatternUsage int `json:"pattern_usage_total"`
	Keywords     int `json:"keywords_indexed"`
}

// Index is the keyword-indexed example store. It is built once from the
// dataset file plus the learned patterns, then grown incrementally as new
// patterns are promoted.
type Index struct {
	mu        sync.RWMutex
	exchanges []Exchange
	postings  map[string][]int
	store     *patterns.Store
	logger    *log.Logger

	// OnPatternAdded, when set before the index is shared, is called each
	// time a new pattern exchange lands.
	OnPatternAdded func()
}

// New loads the dataset and the learned patterns and builds the inverted
// keyword index. A missing or partly corrupt dataset degrades to whatever
// could be read.
func New(datasetPath string, store *patterns.Store, logger *log.Logger) *Index {
	if logger == nil {
		logger = log.Default()
	}
	idx := &Index{
		postings: make(map[string][]int),
		store:    store,
		logger:   logger,
	}
	idx.loadDataset(datasetPath)
	idx.loadPatterns()
	idx.buildPostings()
	logger.Printf("index: %d exchanges loaded (dataset + patterns)", len(idx.exchanges))
	return idx
}

func (idx *Index) loadDataset(path string) {
	f, err := os.Open(path)
	if err != nil {
		idx.logger.Printf("index: dataset %s unavailable: %v", path, err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ex Exchange
		if err := json.Unmarshal([]byte(line), &ex); err != nil {
			// Malformed lines are skipped one by one; the load goes on.
			continue
		}
		if ex.Source == "" {
			ex.Source = SourceDataset
		}
		idx.exchanges = append(idx.exchanges, ex)
	}
	if err := scanner.Err(); err != nil {
		idx.logger.Printf("index: reading dataset stopped early: %v", err)
	}
}

func (idx *Index) loadPatterns() {
	for _, p := range idx.store.All() {
		idx.exchanges = append(idx.exchanges, patternExchange(p))
	}
}

func (idx *Index) buildPostings() {
	for pos, ex := range idx.exchanges {
		idx.indexExchange(pos, ex)
	}
}

// indexExchange is called with idx.mu held (or before the index is shared).
func (idx *Index) indexExchange(pos int, ex Exchange) {
	for _, kw := range extractKeywords(exchangeText(ex)) {
		idx.postings[kw] = append(idx.postings[kw], pos)
	}
}

func exchangeText(ex Exchange) string {
	parts := make([]string, 0, len(ex.Messages))
	for _, m := range ex.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, " ")
}

func patternExchange(p patterns.Pattern) Exchange {
	return Exchange{
		Messages: []Message{
			{Role: "user", Content: p.Input},
			{Role: "assistant", Content: p.Response},
		},
		Source:     SourcePattern,
		UsageCount: p.UsageCount,
		LearnedAt:  p.LearnedAt,
	}
}

// FindSimilar retrieves up to topK exchanges sharing keywords with the
// query. Pattern-sourced exchanges outrank dataset ones, then higher usage,
// then raw keyword overlap; remaining ties keep index order.
func (idx *Index) FindSimilar(query string, topK int) []Scored {
	if topK <= 0 {
		return nil
	}
	if shouldSkipQuery(query) {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.exchanges) == 0 {
		return nil
	}

	scores := make(map[int]int)
	for _, kw := range extractKeywords(strings.ToLower(query)) {
		for _, pos := range idx.postings[kw] {
			scores[pos]++
		}
	}
	if len(scores) == 0 {
		return nil
	}

	candidates := make([]Scored, 0, len(scores))
	positions := make([]int, 0, len(scores))
	for pos := range scores {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for _, pos := range positions {
		candidates = append(candidates, Scored{
			Pos:      pos,
			Score:    scores[pos],
			Exchange: idx.exchanges[pos],
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		ap, bp := a.Exchange.Source == SourcePattern, b.Exchange.Source == SourcePattern
		if ap != bp {
			return ap
		}
		if a.Exchange.UsageCount != b.Exchange.UsageCount {
			return a.Exchange.UsageCount > b.Exchange.UsageCount
		}
		return a.Score > b.Score
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// AddExchange appends a freshly learned pattern exchange: write-through to
// the pattern store (deduplicated by exact input) and an O(1) insert into
// the in-memory postings.
func (idx *Index) AddExchange(userText, botText string) {
	p, added := idx.store.Append(userText, botText)
	if !added {
		// Already known; the in-memory entry for it exists too.
		return
	}
	ex := patternExchange(p)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	pos := len(idx.exchanges)
	idx.exchanges = append(idx.exchanges, ex)
	idx.indexExchange(pos, ex)
	idx.logger.Printf("index: new pattern exchange added: %.50s", userText)
	if idx.OnPatternAdded != nil {
		idx.OnPatternAdded()
	}
}

// IncrementUsage bumps the usage counter of a pattern-sourced exchange and
// mirrors the new value into the pattern file.
func (idx *Index) IncrementUsage(pos int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if pos < 0 || pos >= len(idx.exchanges) {
		return
	}
	ex := &idx.exchanges[pos]
	if ex.Source != SourcePattern {
		return
	}
	ex.UsageCount++
	for _, m := range ex.Messages {
		if m.Role == "user" {
			idx.store.SetUsage(m.Content, ex.UsageCount)
			break
		}
	}
}

// Stats reports the current composition of the index.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	st := Stats{Total: len(idx.exchanges), Keywords: len(idx.postings)}
	for _, ex := range idx.exchanges {
		if ex.Source == SourcePattern {
			st.FromPatterns++
			st.PatternUsage += ex.UsageCount
		} else {
			st.FromDataset++
		}
	}
	return st
}
