// Package provider defines the transport primitives the removal cache is built on.
//
// A Provider exposes the three value shapes a remote key-value store offers:
// plain strings, hashes (field -> value) and unordered sets of strings. TTLs are
// whole-key only; there is no per-field or per-member expiry.
//
// Implementations return transport failures as errors and never swallow them.
// Containment is the cache store's job, not the provider's.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrEnumerationUnsupported is returned when a store cannot list keys by pattern.
var ErrEnumerationUnsupported = errors.New("provider: key enumeration unsupported")

// ReadPreference is a routing hint for reads. The store may ignore it.
type ReadPreference int

const (
	PreferPrimary ReadPreference = iota
	PreferReplica
)

func (p ReadPreference) String() string {
	if p == PreferReplica {
		return "prefer_replica"
	}
	return "prefer_primary"
}

// Provider must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; ("", false, nil) on miss.
	Get(ctx context.Context, key string, pref ReadPreference) (string, bool, error)

	// Set stores value. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes key. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	// HGetAll returns every field of the hash at key; empty on miss.
	HGetAll(ctx context.Context, key string, pref ReadPreference) (map[string]string, error)

	// HSet writes fields into the hash at key without touching its TTL.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// SMembers returns the members of the set at key in no particular order.
	SMembers(ctx context.Context, key string, pref ReadPreference) ([]string, error)

	// SAdd adds members to the set at key without touching its TTL.
	SAdd(ctx context.Context, key string, members ...string) error

	// Expire sets a whole-key TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Enumerator is implemented by providers that can list keys by glob pattern.
// Patterns use Redis SCAN MATCH syntax on every provider: { } and , are
// literals and [^x] negates a class.
type Enumerator interface {
	Keys(ctx context.Context, pattern string) ([]string, error)
}
