// Package cache provides LRU caching for fetched document content.
//
// The cache is session-scoped: it lives as long as the retrieval service
// that owns it and is never persisted. Entries are keyed by the resolved
// content reference and accounted in bytes.
//
// LRUCache is a single-mutex LRU. ShardedLRUCache spreads entries across 16
// shards (maphash of the key) to reduce contention under concurrent fetches.
// Both integrate with the resource Controller so cached bytes count against
// the session memory limit.
package cache
