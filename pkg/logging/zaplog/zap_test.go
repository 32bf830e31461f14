package zaplog

import (
	"testing"

	"github.com/goliatone/go-scopecache/pkg/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_ForwardsLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core))

	l.Debug("reload", logging.Fields{"entity": "language", "count": 3})
	l.Info("commit", nil)
	l.Warn("stale", logging.Fields{"entity": "domain"})
	l.Error("fetch failed", logging.Fields{"err": "boom"})

	if logs.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", logs.Len())
	}

	first := logs.All()[0]
	if first.Message != "reload" || first.Level != zap.DebugLevel {
		t.Fatalf("unexpected first entry: %+v", first.Entry)
	}
	ctx := first.ContextMap()
	if ctx["entity"] != "language" {
		t.Errorf("expected entity field, got %v", ctx)
	}

	if got := logs.All()[1].Context; len(got) != 0 {
		t.Errorf("expected no fields for nil map, got %v", got)
	}
	if logs.All()[3].Level != zap.ErrorLevel {
		t.Errorf("expected error level, got %v", logs.All()[3].Level)
	}
}
