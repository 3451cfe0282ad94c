package removalcache

import (
	"context"
	"time"

	pr "github.com/unkn0wn-root/removalcache/provider"
)

// Store is the cache contract the encoding strategies are written against.
//
// Contract:
//   - Concurrency: safe for concurrent use; the only shared state is the provider.
//   - Reads: every read carries the configured ReadPreference. Replica reads may
//     lag the latest write; there is no read-your-writes guarantee.
//   - Errors: only GetScalar and SetScalar report failures. All other operations
//     return the zero value and report the failure to Hooks.
//   - ttl <= 0 means no expiry.
type Store interface {
	// Scalar (raw string path)
	GetScalar(ctx context.Context, key string) (value string, ok bool, err error)
	SetScalar(ctx context.Context, key, value string, ttl time.Duration) error
	RemoveKey(ctx context.Context, key string)

	// Hash
	GetHash(ctx context.Context, key string) (fields map[string]string, ok bool)
	SetHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration)
	// SetHashAsync queues the write and returns at once. The write may not have
	// reached the store, or may be dropped, when it returns.
	SetHashAsync(ctx context.Context, key string, fields map[string]string, ttl time.Duration)

	// Set
	GetSetMembers(ctx context.Context, key string) (members []string, ok bool)
	AddSetMembers(ctx context.Context, key string, members []string, ttl time.Duration)
	// AddSetMembersAsync is the fire-and-forget form of AddSetMembers.
	AddSetMembersAsync(ctx context.Context, key string, members []string, ttl time.Duration)

	// TruncateByPattern deletes every key matching each pattern, one by one.
	// Best effort: no retry, not transactional. Returns
	// provider.ErrEnumerationUnsupported when the provider cannot list keys.
	TruncateByPattern(ctx context.Context, patterns ...string) (deleted int, err error)

	ReadPreference() pr.ReadPreference
	// Close drains queued async writes, then closes the provider.
	Close(context.Context) error
}

// Options configure a Store. Only Provider is required.
type Options struct {
	Provider       pr.Provider
	ReadPreference pr.ReadPreference // default PreferPrimary

	Logger       Logger // if nil, NopLogger is used
	Hooks        Hooks  // if nil, NopHooks is used
	AsyncWorkers int    // fire-and-forget workers; 0 => 4
	AsyncQueue   int    // fire-and-forget queue length; 0 => 1024
}

func New(opts Options) (Store, error) {
	return newStore(opts)
}
