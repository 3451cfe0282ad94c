package removalcache

import "time"

// Operation names passed to Hooks and logs.
const (
	OpGetScalar     = "get_scalar"
	OpSetScalar     = "set_scalar"
	OpRemoveKey     = "remove_key"
	OpGetHash       = "get_hash"
	OpSetHash       = "set_hash"
	OpGetSetMembers = "get_set_members"
	OpAddSetMembers = "add_set_members"
	OpGetStructured = "get_structured"
	OpSetStructured = "set_structured"
	OpTruncate      = "truncate"
)

// Hooks lightweight callbacks for failures the Store does not return to callers.
// Implementations MUST be cheap and non-blocking.
// The store calls them on hot paths.
type Hooks interface {
	// A store operation failed. op is one of the Op* constants.
	OpFailed(op, key string, err error)

	// The hash/set write landed but the follow-up EXPIRE failed.
	// The key now has no TTL.
	ExpireFailed(key string, ttl time.Duration, err error)

	// A fire-and-forget write never ran (queue full or store closed).
	AsyncDropped(op, key string)

	// Enumerating pattern, or deleting key under it, failed during truncate.
	TruncateFailed(pattern, key string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) OpFailed(string, string, error)            {}
func (NopHooks) ExpireFailed(string, time.Duration, error) {}
func (NopHooks) AsyncDropped(string, string)               {}
func (NopHooks) TruncateFailed(string, string, error)      {}

// MultiHooks fans every event out to each of its hooks in order.
type MultiHooks []Hooks

func (m MultiHooks) OpFailed(op, key string, err error) {
	for _, h := range m {
		h.OpFailed(op, key, err)
	}
}

func (m MultiHooks) ExpireFailed(key string, ttl time.Duration, err error) {
	for _, h := range m {
		h.ExpireFailed(key, ttl, err)
	}
}

func (m MultiHooks) AsyncDropped(op, key string) {
	for _, h := range m {
		h.AsyncDropped(op, key)
	}
}

func (m MultiHooks) TruncateFailed(pattern, key string, err error) {
	for _, h := range m {
		h.TruncateFailed(pattern, key, err)
	}
}
