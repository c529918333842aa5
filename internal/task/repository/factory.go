package repository

import (
	"fmt"

	"github.com/karl-ai/corehub/internal/common/config"
)

// New creates the repository backend selected by the database configuration.
func New(cfg config.DatabaseConfig) (Repository, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryRepository(), nil
	case "sqlite":
		return NewSQLiteRepository(cfg.Path)
	case "postgres":
		return NewPostgresRepository(cfg)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}
