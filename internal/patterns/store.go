package patterns

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

const (
	maxInputRunes    = 100
	maxResponseRunes = 200
)

// Pattern is an exchange promoted from live interaction.
type Pattern struct {
	Input      string    `json:"input"`
	Response   string    `json:"response"`
	LearnedAt  time.Time `json:"learned_at"`
	UsageCount int       `json:"usage_count"`
}

// Store is the single owner of the learned-patterns file. The learner and
// the example index both go through it; neither touches the file directly.
type Store struct {
	mu       sync.Mutex
	path     string
	patterns []Pattern
	logger   *log.Logger
}

func NewStore(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	s := &Store{path: path, logger: logger}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("patterns: read %s failed, starting empty: %v", s.path, err)
		}
		return
	}
	var loaded []Pattern
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Printf("patterns: %s is corrupt, starting empty: %v", s.path, err)
		return
	}
	s.patterns = loaded
}

// persist is called with s.mu held.
func (s *Store) persist() {
	data, err := json.MarshalIndent(s.patterns, "", "  ")
	if err != nil {
		s.logger.Printf("patterns: marshal failed: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Printf("patterns: write %s failed: %v", s.path, err)
	}
}

// All returns a snapshot of the stored patterns.
func (s *Store) All() []Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pattern, len(s.patterns))
	copy(out, s.patterns)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patterns)
}

// Append adds a new pattern unless one with the same (truncated) input
// already exists. It reports whether the pattern was added and returns the
// stored form.
func (s *Store) Append(input, response string) (Pattern, bool) {
	p := Pattern{
		Input:      Truncate(input, maxInputRunes),
		Response:   Truncate(response, maxResponseRunes),
		LearnedAt:  time.Now().UTC(),
		UsageCount: 0,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.patterns {
		if existing.Input == p.Input {
			return existing, false
		}
	}
	s.patterns = append(s.patterns, p)
	s.persist()
	return p, true
}

// Update replaces the response of the pattern with the given input,
// resetting its usage counter and refreshing its learned_at timestamp.
func (s *Store) Update(input, response string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.patterns {
		if s.patterns[i].Input == input {
			s.patterns[i].Response = Truncate(response, maxResponseRunes)
			s.patterns[i].LearnedAt = time.Now().UTC()
			s.patterns[i].UsageCount = 0
			s.persist()
			return true
		}
	}
	return false
}

// IncrementUsage bumps a pattern's usage counter, located by exact input,
// and persists the change.
func (s *Store) IncrementUsage(input string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.patterns {
		if s.patterns[i].Input == input {
			s.patterns[i].UsageCount++
			s.persist()
			return s.patterns[i].UsageCount, true
		}
	}
	return 0, false
}

// SetUsage overwrites a pattern's usage counter, located by exact input.
// The example index uses it to mirror its in-memory counters into the file.
func (s *Store) SetUsage(input string, count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.patterns {
		if s.patterns[i].Input == input {
			s.patterns[i].UsageCount = count
			s.persist()
			return true
		}
	}
	return false
}

// Truncate limits s to at most n runes.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
