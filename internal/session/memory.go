package session

import (
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message inside a conversation buffer.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Memory keeps a bounded rolling window of recent turns per chat. Nothing
// here is persisted; a restart starts every conversation fresh.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	chats    map[int64][]Turn
}

const DefaultCapacity = 20

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity: capacity,
		chats:    make(map[int64][]Turn),
	}
}

// Append pushes a turn, evicting the oldest one once the buffer is full.
func (m *Memory) Append(chatID int64, role Role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := m.chats[chatID]
	if len(buf) >= m.capacity {
		copy(buf, buf[1:])
		buf = buf[:len(buf)-1]
	}
	m.chats[chatID] = append(buf, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// Recent returns at most limit turns, most recent last.
func (m *Memory) Recent(chatID int64, limit int) []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buf := m.chats[chatID]
	if len(buf) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(buf) {
		limit = len(buf)
	}
	out := make([]Turn, limit)
	copy(out, buf[len(buf)-limit:])
	return out
}

// All returns the full current buffer for the chat.
func (m *Memory) All(chatID int64) []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buf := m.chats[chatID]
	if len(buf) == 0 {
		return nil
	}
	out := make([]Turn, len(buf))
	copy(out, buf)
	return out
}

// Clear empties the buffer in place; the chat stays known to the store.
func (m *Memory) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if buf, ok := m.chats[chatID]; ok {
		m.chats[chatID] = buf[:0]
	}
}

// ChatCount reports how many chats have ever been seen.
func (m *Memory) ChatCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chats)
}
