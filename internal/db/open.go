package db

import (
	"context"
	"strings"

	"lol-match-crawler/internal/storage"
)

// Open picks a backend from the URL scheme: postgres:// and postgresql://
// go to Postgres, everything else to OpenSQL.
func Open(ctx context.Context, rawURL, authToken string) (storage.Sink, error) {
	if strings.HasPrefix(rawURL, "postgres://") || strings.HasPrefix(rawURL, "postgresql://") {
		return OpenPostgres(ctx, rawURL)
	}
	return OpenSQL(ctx, rawURL, authToken)
}
