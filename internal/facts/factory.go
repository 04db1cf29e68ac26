package facts

import (
	"context"
	"log"
	"strings"
)

// NewStore creates a postgres-backed store when configured, otherwise the
// default file-backed store.
func NewStore(ctx context.Context, usersFile, databaseURL string, logger *log.Logger) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewFileStore(usersFile, logger), nil
	}
	return NewPostgresStore(ctx, databaseURL, logger)
}
