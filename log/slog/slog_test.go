package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/cacherefresh"
)

func TestSlogLoggerOrdersAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})
	l := Logger{L: stdslog.New(h)}

	l.Debug("hidden", cacherefresh.Fields{"x": 1})
	l.Info("cache update started", cacherefresh.Fields{"pages": 3, "keys": 25})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, `msg="cache update started" keys=25 pages=3`) {
		t.Fatalf("unexpected output: %q", out)
	}
}
