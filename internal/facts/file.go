package facts

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strconv"
	"sync"
	"time"
)

// FileStore keeps user records in memory and write-through persists them to
// a single JSON file. The in-memory state stays authoritative when a write
// fails.
type FileStore struct {
	mu     sync.Mutex
	path   string
	users  map[string]*UserRecord
	logger *log.Logger
}

func NewFileStore(path string, logger *log.Logger) *FileStore {
	if logger == nil {
		logger = log.Default()
	}
	s := &FileStore{
		path:   path,
		users:  make(map[string]*UserRecord),
		logger: logger,
	}
	s.load()
	return s
}

func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("facts: read %s failed, starting empty: %v", s.path, err)
		}
		return
	}
	var users map[string]*UserRecord
	if err := json.Unmarshal(data, &users); err != nil {
		s.logger.Printf("facts: %s is corrupt, starting empty: %v", s.path, err)
		return
	}
	for _, u := range users {
		if u.LearnedNames == nil {
			u.LearnedNames = make(map[string]string)
		}
	}
	s.users = users
}

// persist is called with s.mu held.
func (s *FileStore) persist() {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		s.logger.Printf("facts: marshal users failed: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Printf("facts: write %s failed: %v", s.path, err)
	}
}

func (s *FileStore) GetName(_ context.Context, userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userKey(userID)]
	if !ok || u.Name == nil || *u.Name == "" {
		return "", false
	}
	return *u.Name, true
}

func (s *FileStore) SetName(_ context.Context, userID int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	u, ok := s.users[userKey(userID)]
	if !ok {
		u = newRecord(now)
		s.users[userKey(userID)] = u
	}
	u.Name = &name
	u.LastSeen = laterOf(u.LastSeen, now)
	s.persist()
}

func (s *FileStore) AddChat(_ context.Context, userID, chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	u, ok := s.users[userKey(userID)]
	if !ok {
		u = newRecord(now)
		s.users[userKey(userID)] = u
	}
	if !containsChat(u.ChatIDs, chatID) {
		u.ChatIDs = append(u.ChatIDs, chatID)
	}
	u.LastSeen = laterOf(u.LastSeen, now)
	s.persist()
}

func (s *FileStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *FileStore) Close() error { return nil }

func newRecord(now time.Time) *UserRecord {
	return &UserRecord{
		LearnedNames: make(map[string]string),
		TrustScore:   defaultTrustScore,
		CreatedAt:    now,
		LastSeen:     now,
	}
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func containsChat(ids []int64, chatID int64) bool {
	for _, id := range ids {
		if id == chatID {
			return true
		}
	}
	return false
}

// laterOf keeps LastSeen monotonically non-decreasing even if the wall
// clock steps backwards between writes.
func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
