package facts

import (
	"context"
	"time"
)

// UserRecord stores everything learned about a single user.
type UserRecord struct {
	Name         *string           `json:"name"`
	ChatIDs      []int64           `json:"chat_ids"`
	LearnedNames map[string]string `json:"learned_names"`
	TrustScore   float64           `json:"trust_score"`
	CreatedAt    time.Time         `json:"created_at"`
	LastSeen     time.Time         `json:"last_seen"`
}

const defaultTrustScore = 0.5

// Store persists and retrieves per-user facts.
type Store interface {
	GetName(ctx context.Context, userID int64) (string, bool)
	SetName(ctx context.Context, userID int64, name string)
	AddChat(ctx context.Context, userID, chatID int64)
	UserCount() int
	Close() error
}
