// Package zap adapts a *zap.Logger to removalcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	rc "github.com/unkn0wn-root/removalcache"
)

var _ rc.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

func (z ZapLogger) Debug(msg string, f rc.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f rc.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f rc.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f rc.Fields) { z.L.Error(msg, zf(f)...) }

// zf converts fields in key order; an error under "err" becomes zap.Error.
func zf(f rc.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]zap.Field, 0, len(f))
	for _, k := range names {
		v := f[k]
		if err, ok := v.(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
