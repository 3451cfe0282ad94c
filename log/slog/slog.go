//go:build go1.21

// Package slog adapts a *slog.Logger to removalcache.Logger.
package slog

import (
	"context"
	stdslog "log/slog"
	"sort"

	rc "github.com/unkn0wn-root/removalcache"
)

var _ rc.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

func (s Logger) Debug(msg string, f rc.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f rc.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f rc.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f rc.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(level stdslog.Level, msg string, f rc.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, level) {
		return
	}
	s.L.LogAttrs(ctx, level, msg, attrs(f)...)
}

func attrs(f rc.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]stdslog.Attr, 0, len(f))
	for _, k := range names {
		out = append(out, stdslog.Any(k, f[k]))
	}
	return out
}
