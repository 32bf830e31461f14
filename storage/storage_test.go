package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/scope"
)

type note struct {
	bun.BaseModel `bun:"table:notes"`

	ID   int    `bun:"id,pk"`
	Body string `bun:"body"`
}

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()

	cfg := DefaultConfig()
	cfg.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))

	ctx := context.Background()
	db, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.NewCreateTable().Model((*note)(nil)).IfNotExists().Exec(ctx); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	return db
}

func newProvider(t *testing.T, db *bun.DB) *scope.Provider {
	t.Helper()
	caches, err := cache.NewIsolatedCaches(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("NewIsolatedCaches failed: %v", err)
	}
	t.Cleanup(func() { _ = caches.Close() })
	return scope.NewProvider(caches, scope.WithTransactor(NewTransactor(db, nil)))
}

func countNotes(t *testing.T, db *bun.DB) int {
	t.Helper()
	n, err := db.NewSelect().Model((*note)(nil)).Count(context.Background())
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func insertNote(t *testing.T, ctx context.Context, sc *scope.Scope, n *note) {
	t.Helper()
	idb, err := IDB(ctx, sc)
	if err != nil {
		t.Fatalf("IDB failed: %v", err)
	}
	if _, err := idb.NewInsert().Model(n).Exec(ctx); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "postgres", mutate: func(c *Config) { c.Driver = DriverPostgres; c.DSN = "postgres://localhost/db" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Driver = "mysql" }, wantErr: true},
		{name: "missing dsn", mutate: func(c *Config) { c.DSN = "" }, wantErr: true},
		{name: "negative pool", mutate: func(c *Config) { c.MaxOpenConns = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatal("expected invalid driver to be rejected")
	}
}

func TestTransactor_CommitsCompletedScope(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	provider := newProvider(t, db)

	sc, err := provider.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	insertNote(t, ctx, sc, &note{ID: 1, Body: "kept"})

	child, err := sc.Begin(ctx)
	if err != nil {
		t.Fatalf("child Begin failed: %v", err)
	}
	insertNote(t, ctx, child, &note{ID: 2, Body: "kept too"})
	child.Complete()
	if err := child.Dispose(ctx); err != nil {
		t.Fatalf("child Dispose failed: %v", err)
	}

	sc.Complete()
	if err := sc.Dispose(ctx); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}

	if n := countNotes(t, db); n != 2 {
		t.Fatalf("committed rows = %d, want 2", n)
	}
}

func TestTransactor_RollsBackIncompleteScope(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	provider := newProvider(t, db)

	sc, err := provider.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	insertNote(t, ctx, sc, &note{ID: 1, Body: "dropped"})
	if err := sc.Dispose(ctx); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}

	if n := countNotes(t, db); n != 0 {
		t.Fatalf("rows after rollback = %d, want 0", n)
	}
}

func TestTransactor_OutlivesCallerContext(t *testing.T) {
	db := openTestDB(t)
	provider := newProvider(t, db)

	sc, err := provider.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	callCtx, cancel := context.WithCancel(context.Background())
	insertNote(t, callCtx, sc, &note{ID: 1, Body: "survives"})
	cancel()

	sc.Complete()
	if err := sc.Dispose(context.Background()); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if n := countNotes(t, db); n != 1 {
		t.Fatalf("committed rows = %d, want 1", n)
	}
}

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }

type foreignTransactor struct{}

func (foreignTransactor) BeginTx(context.Context) (scope.Tx, error) { return foreignTx{}, nil }

func TestIDB_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := IDB(ctx, nil); !errors.Is(err, scope.ErrScopeRequired) {
		t.Fatalf("nil scope error = %v, want ErrScopeRequired", err)
	}

	caches, err := cache.NewIsolatedCaches(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("NewIsolatedCaches failed: %v", err)
	}
	defer caches.Close()

	bare, _ := scope.NewProvider(caches).Begin(ctx)
	defer bare.Dispose(ctx)
	if _, err := IDB(ctx, bare); !errors.Is(err, scope.ErrNoTransactor) {
		t.Fatalf("no transactor error = %v, want ErrNoTransactor", err)
	}

	foreign, _ := scope.NewProvider(caches, scope.WithTransactor(foreignTransactor{})).Begin(ctx)
	defer foreign.Dispose(ctx)
	if _, err := IDB(ctx, foreign); !errors.Is(err, ErrForeignTx) {
		t.Fatalf("foreign tx error = %v, want ErrForeignTx", err)
	}

	disposed, _ := scope.NewProvider(caches).Begin(ctx)
	_ = disposed.Dispose(ctx)
	if _, err := IDB(ctx, disposed); !errors.Is(err, scope.ErrScopeDisposed) {
		t.Fatalf("disposed scope error = %v, want ErrScopeDisposed", err)
	}
}
