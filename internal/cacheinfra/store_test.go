package cacheinfra

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-scopecache/pkg/logging"
)

type waiter interface{ Wait() }

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	stores := map[string]Store{}
	for _, backend := range []string{BackendSturdyc, BackendRistretto, BackendBigCache} {
		cfg := DefaultConfig()
		cfg.Backend = backend
		cfg.TTL = time.Minute
		s, err := NewStore(cfg)
		if err != nil {
			t.Fatalf("NewStore(%s) failed: %v", backend, err)
		}
		t.Cleanup(func() { _ = s.Close() })
		stores[backend] = s
	}
	return stores
}

func settle(s Store) {
	if w, ok := s.(waiter); ok {
		w.Wait()
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			s.Set("language::0::e::1", []byte("en-US"), 0)
			settle(s)

			got, ok := s.Get("language::0::e::1")
			if !ok {
				t.Fatal("expected hit after Set")
			}
			if string(got) != "en-US" {
				t.Fatalf("unexpected value %q", got)
			}

			s.Delete("language::0::e::1")
			settle(s)
			if _, ok := s.Get("language::0::e::1"); ok {
				t.Fatal("expected miss after Delete")
			}

			// deleting a missing key is not an error
			s.Delete("language::0::e::missing")
		})
	}
}

func TestStore_Scanner(t *testing.T) {
	for name, s := range newStores(t) {
		scanner, ok := s.(Scanner)
		if !ok {
			continue
		}
		t.Run(name, func(t *testing.T) {
			s.Set("domain::0::all", []byte("x"), 0)
			s.Set("domain::0::e::7", []byte("y"), 0)

			keys := scanner.Keys()
			sort.Strings(keys)
			if len(keys) != 2 || keys[0] != "domain::0::all" || keys[1] != "domain::0::e::7" {
				t.Fatalf("unexpected keys: %v", keys)
			}
		})
	}
}

func TestNewStore_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = 0
	if _, err := NewStore(cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

type debugRecorder struct {
	logging.NopLogger
	mu   sync.Mutex
	msgs []string
}

func (r *debugRecorder) Debug(msg string, _ logging.Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func TestBigCacheStore_OversizedEntryIsReported(t *testing.T) {
	rec := &debugRecorder{}
	cfg := DefaultConfig()
	cfg.Backend = BackendBigCache
	cfg.TTL = time.Minute
	cfg.BigCache.HardMaxCacheSizeMB = 1
	cfg.Logger = rec

	s, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// a shard holds 1MB / 64 shards, far less than the entry
	s.Set("language::0::all", make([]byte, 1<<20), 0)
	if _, ok := s.Get("language::0::all"); ok {
		t.Fatal("expected the oversized entry to be refused")
	}

	if got := s.(*bigcacheStore).Rejected(); got != 1 {
		t.Fatalf("Rejected() = %d, want 1", got)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.msgs) != 1 || rec.msgs[0] != "bigcache refused entry" {
		t.Fatalf("unexpected debug messages: %v", rec.msgs)
	}
}
