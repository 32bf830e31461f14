package zerologlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/rs/zerolog"
)

func TestLogger_WritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf).Level(zerolog.DebugLevel))

	l.Info("commit", logging.Fields{"scope": "abc", "keys": 2})

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("invalid json output %q: %v", buf.String(), err)
	}
	if line["message"] != "commit" || line["level"] != "info" {
		t.Errorf("unexpected line: %v", line)
	}
	if line["scope"] != "abc" {
		t.Errorf("expected scope field, got %v", line)
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf).Level(zerolog.WarnLevel))

	l.Debug("hidden", logging.Fields{"a": 1})
	l.Error("shown", nil)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("error line missing: %q", out)
	}
}
