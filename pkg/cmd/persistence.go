package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/subseq/zini/pkg/persistence"
	"github.com/subseq/zini/pkg/persistence/memory"
	"github.com/subseq/zini/pkg/persistence/postgresql"
)

// NewPersistence selects a persistence backend from the database URL
// scheme. postgres:// and postgresql:// URLs get the PostgreSQL store;
// anything else falls back to the in-memory store, which is only suitable
// for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return store
	default:
		logger.Warn("No persistent database configured, using in-memory store")

		return memory.NewPersistence()
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return provider
}
