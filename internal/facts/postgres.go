package facts

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists user facts in PostgreSQL. Reads and writes go
// through the pool directly; like the file store, a failed write is logged
// and swallowed so the bot keeps answering.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgresStore(ctx context.Context, databaseURL string, logger *log.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = log.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initUserSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func initUserSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS grisha_users (
			user_id BIGINT PRIMARY KEY,
			name TEXT NULL,
			chat_ids BIGINT[] NOT NULL DEFAULT '{}',
			learned_names JSONB NOT NULL DEFAULT '{}',
			trust_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			created_at TIMESTAMPTZ NOT NULL,
			last_seen TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_grisha_users_last_seen ON grisha_users (last_seen);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init user schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetName(ctx context.Context, userID int64) (string, bool) {
	var name *string
	err := s.pool.QueryRow(ctx,
		`SELECT name FROM grisha_users WHERE user_id=$1`, userID).Scan(&name)
	if err != nil {
		if err != pgx.ErrNoRows {
			s.logger.Printf("facts: query name for %d failed: %v", userID, err)
		}
		return "", false
	}
	if name == nil || *name == "" {
		return "", false
	}
	return *name, true
}

func (s *PostgresStore) SetName(ctx context.Context, userID int64, name string) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO grisha_users (user_id, name, trust_score, created_at, last_seen)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     last_seen = GREATEST(grisha_users.last_seen, EXCLUDED.last_seen)`,
		userID, name, defaultTrustScore, now)
	if err != nil {
		s.logger.Printf("facts: persist name for %d failed: %v", userID, err)
	}
}

func (s *PostgresStore) AddChat(ctx context.Context, userID, chatID int64) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO grisha_users (user_id, chat_ids, trust_score, created_at, last_seen)
		 VALUES ($1, ARRAY[$2]::BIGINT[], $3, $4, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET chat_ids = CASE
		         WHEN $2 = ANY(grisha_users.chat_ids) THEN grisha_users.chat_ids
		         ELSE array_append(grisha_users.chat_ids, $2)
		     END,
		     last_seen = GREATEST(grisha_users.last_seen, EXCLUDED.last_seen)`,
		userID, chatID, defaultTrustScore, now)
	if err != nil {
		s.logger.Printf("facts: persist chat %d for %d failed: %v", chatID, userID, err)
	}
}

func (s *PostgresStore) UserCount() int {
	var n int
	if err := s.pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM grisha_users`).Scan(&n); err != nil {
		s.logger.Printf("facts: count users failed: %v", err)
		return 0
	}
	return n
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
