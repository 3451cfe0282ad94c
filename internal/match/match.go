// Package match compiles Redis SCAN MATCH patterns for providers that walk
// their keys in process.
//
// Redis and gobwas/glob disagree on two points: Redis treats { } and , as
// literals where glob reads alternation, and Redis negates a class with [^..]
// where glob uses [!..]. Compile rewrites the pattern to glob syntax first.
package match

import (
	"strings"

	"github.com/gobwas/glob"
)

// Compile returns a matcher for a Redis-style pattern. * and ? match any
// character, ':' included.
func Compile(pattern string) (glob.Glob, error) {
	return glob.Compile(translate(pattern))
}

func translate(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 4)
	inClass := false
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '\\' && i+1 < len(pattern):
			b.WriteByte('\\')
			b.WriteByte(pattern[i+1])
			i++
		case inClass:
			if ch == ']' {
				inClass = false
			}
			b.WriteByte(ch)
		case ch == '[':
			inClass = true
			b.WriteByte('[')
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				b.WriteByte('!')
				i++
			}
		case ch == '{' || ch == '}' || ch == ',':
			b.WriteByte('\\')
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
