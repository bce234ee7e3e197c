package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golemcraft.ai/internal/persistence/indexdb"
	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/tuning"
	"golemcraft.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	UpsertCatalogs(worldID string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

func indexPath(worldDir string) string {
	return filepath.Join(worldDir, "index", "world.sqlite")
}

func openRuntimeIndex(worldDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("GC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(indexPath(worldDir))
		if err != nil {
			return nil, err
		}
		logger.Printf("index backend: sqlite (%s)", indexPath(worldDir))
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported GC_INDEX_BACKEND=%q", backend)
	}
}
