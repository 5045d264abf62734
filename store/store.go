// Package store selects a core.ReviewStore implementation by driver name.
//
// Implementations live in sub-packages: memory (volatile), sqlite (embedded,
// single node) and postgres (shared). Every implementation passes the
// storetest conformance suite.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/store/memory"
	"github.com/hupe1980/reviewmesh/store/postgres"
	"github.com/hupe1980/reviewmesh/store/sqlite"
)

// Supported driver names.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the store for driver. An empty driver selects memory.
func Open(ctx context.Context, driver, dsn string) (core.ReviewStore, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		return sqlite.Open(ctx, dsn)
	case DriverPostgres:
		return postgres.Open(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
