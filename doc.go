// Package removalcache caches, per routing request, which entities were removed
// and why, on top of a remote key-value store.
//
// Components:
//   - Provider: transport primitives over strings, hashes and sets with whole-key
//     TTLs (Redis, or in-process ristretto/bigcache/memory).
//   - Store: the store-agnostic contract the encoding strategies write through.
//     It routes reads by a fixed read preference and contains transport failures.
//   - strategy: four encodings of reason -> entity ids (delimited string,
//     structured document, hash, set), see package strategy.
//   - keys: deterministic key construction per strategy prefix.
//
// Failure containment:
//
//	GetScalar, SetScalar        -> *KeyError (matches ErrScalar), no cause attached
//	everything else             -> zero value / absent, failure sent to Hooks
//
// Hash and set TTLs are emulated with a second EXPIRE after the write. The two
// steps are not atomic; a failed EXPIRE leaves the key without TTL and only
// Hooks.ExpireFailed sees it.
package removalcache
