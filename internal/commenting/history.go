package commenting

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/grishabot/grisha/internal/patterns"
)

const (
	DefaultHistoryLimit = 500
	evictBatch          = 100
	storedCommentRunes  = 100
)

// Entry records one posted comment.
type Entry struct {
	GroupID     int64     `json:"group_id"`
	PostID      int64     `json:"post_id"`
	CommentText string    `json:"comment_text"`
	Timestamp   time.Time `json:"timestamp"`
}

// History is the file-backed dedup record of posts already commented on.
// Once the limit is reached the oldest batch is dropped.
type History struct {
	mu      sync.Mutex
	path    string
	limit   int
	entries map[string]Entry
	logger  *log.Logger
}

func NewHistory(path string, limit int, logger *log.Logger) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &History{
		path:    path,
		limit:   limit,
		entries: make(map[string]Entry),
		logger:  logger,
	}
	h.load()
	return h
}

func (h *History) load() {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if !os.IsNotExist(err) {
			h.logger.Printf("commenting: history %s unreadable, starting empty: %v", h.path, err)
		}
		return
	}
	if err := json.Unmarshal(data, &h.entries); err != nil {
		h.logger.Printf("commenting: history %s corrupt, starting empty: %v", h.path, err)
		h.entries = make(map[string]Entry)
	}
}

// persist is called with h.mu held.
func (h *History) persist() {
	data, err := json.MarshalIndent(h.entries, "", "  ")
	if err != nil {
		h.logger.Printf("commenting: marshal history: %v", err)
		return
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		h.logger.Printf("commenting: write history %s: %v", h.path, err)
	}
}

func historyKey(groupID, postID int64) string {
	return fmt.Sprintf("%d_%d", groupID, postID)
}

// Contains reports whether the post has already been commented on.
func (h *History) Contains(groupID, postID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.entries[historyKey(groupID, postID)]
	return ok
}

// Add records a posted comment and evicts the oldest batch once over the
// limit.
func (h *History) Add(groupID, postID int64, comment string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[historyKey(groupID, postID)] = Entry{
		GroupID:     groupID,
		PostID:      postID,
		CommentText: patterns.Truncate(comment, storedCommentRunes),
		Timestamp:   time.Now().UTC(),
	}

	if len(h.entries) > h.limit {
		h.evictOldest(evictBatch)
	}
	h.persist()
}

// evictOldest is called with h.mu held. Entries go in timestamp order; the
// newest entry is never evicted.
func (h *History) evictOldest(n int) {
	keys := make([]string, 0, len(h.entries))
	for k := range h.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return h.entries[keys[i]].Timestamp.Before(h.entries[keys[j]].Timestamp)
	})
	if n >= len(keys) {
		n = len(keys) - 1
	}
	if n <= 0 {
		return
	}
	for _, k := range keys[:n] {
		delete(h.entries, k)
	}
}

// Len reports the number of recorded comments.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
