// Package storetest backs the ledger stores with in-memory sqlite databases
// for tests: one database for the shared store and one per batch store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ulixee/payments-sub000/internal/adapters/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var sequence atomic.Int64

// SharedDB opens a migrated shared store database closed with the test.
func SharedDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := openDSN(fmt.Sprintf("file:shared_%d?mode=memory&cache=shared&_busy_timeout=5000", sequence.Add(1)))
	if err != nil {
		t.Fatalf("open shared sqlite: %v", err)
	}
	if err := postgres.MigrateShared(context.Background(), db); err != nil {
		t.Fatalf("migrate shared sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Dialer hands out one in-memory database per batch slug. Every open after
// the first returns a fresh pool onto the same database so eviction from the
// pool does not lose data.
type Dialer struct {
	mu   sync.Mutex
	dsns map[string]string
	keep []*gorm.DB
}

func NewDialer(t testing.TB) *Dialer {
	d := &Dialer{dsns: map[string]string{}}
	t.Cleanup(d.close)
	return d
}

func (d *Dialer) Open(_ context.Context, slug string) (*gorm.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dsn, ok := d.dsns[slug]; ok {
		return openDSN(dsn)
	}
	dsn := fmt.Sprintf("file:batch_%s_%d?mode=memory&cache=shared&_busy_timeout=5000", slug, sequence.Add(1))
	keeper, err := openDSN(dsn)
	if err != nil {
		return nil, err
	}
	d.dsns[slug] = dsn
	d.keep = append(d.keep, keeper)
	return openDSN(dsn)
}

func (d *Dialer) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, db := range d.keep {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func openDSN(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection serializes transactions the way row locks would.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}
