package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/cacherefresh"
)

var _ cacherefresh.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger "cacherefresh" so scheduler lines are easy to filter.
func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("cacherefresh")} }

func (z ZapLogger) Debug(msg string, f cacherefresh.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f cacherefresh.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f cacherefresh.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f cacherefresh.Fields) { z.L.Error(msg, zf(f)...) }

// zf converts fields in key order; error values become zap.Error fields.
func zf(f cacherefresh.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
