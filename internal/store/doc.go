// Package store keeps the latest insight snapshot per watched issue.
//
// This package is internal to insightwatch. [MemoryStore] holds one
// [Snapshot] per issue id and fans every change out to subscribers over
// buffered channels. Sends are non-blocking: a slow subscriber misses
// updates instead of stalling the observers that write to the store.
package store
