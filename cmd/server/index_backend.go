package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"astra.mc/internal/config"
	"astra.mc/internal/persistence/indexdb"
)

// openRuntimeIndex returns nil when indexing is disabled.
func openRuntimeIndex(cfg config.Config) (*indexdb.SQLiteIndex, error) {
	switch backend := strings.ToLower(strings.TrimSpace(cfg.IndexBackend)); backend {
	case "none", "off", "disabled":
		return nil, nil
	case "", "sqlite":
		return indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported index_backend: %s", backend)
	}
}
