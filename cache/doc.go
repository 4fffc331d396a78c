// Package cache provides query fingerprinting and the storage contracts used
// by the query result cache.
//
// # Overview
//
// This package exports:
//
//   - Fingerprinter: a deterministic digest of a structured value, used as a cache key
//   - KeyValueCache: the byte oriented get/set contract the query cache writes through
//   - Codec: serialization of cached rows (JSONCodec by default, MsgpackCodec optional)
//   - Config / NewKeyValueCache: the default in-process store backed by sturdyc
//
// # Fingerprints
//
// The default fingerprinter renders the value in a canonical form and hashes
// it with xxhash64:
//
//	f := cache.NewFingerprinter(cache.WithNamespace("GraphQueries"))
//	key := f.Fingerprint(query.New("RETURN DOCUMENT(@ids)", map[string]any{"ids": ids}))
//	// graph_queries::5c1e0b8e9f3a2d71
//
// The canonical form follows these rules:
//
//   - Maps: entries sorted by canonical key, so key order never matters
//   - Slices/arrays: elements in order, so sequence order always matters
//   - Strings: quoted, so 1 and "1" produce different fingerprints
//   - Structs: exported fields as name:value pairs
//   - Types implementing json.Marshaler or encoding.TextMarshaler (time.Time): their JSON form
//   - Pointers and interfaces: followed; nil renders as nil
//
// # Function Values
//
// Function and channel values render with their pointer. Such keys are stable
// only within one process and should not be used with a shared remote cache.
//
// # Cache Semantics
//
// The cache is advisory. A KeyValueCache reports misses as (nil, false, nil);
// errors are reserved for backend failures and callers degrade them to misses.
// Nothing in this module invalidates entries, they age out through the TTL.
//
// # See Also
//
// The datasource package wraps an executor with this cache (QueryCache).
package cache
