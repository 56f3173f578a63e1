// Package state persists the repository access cache.
//
// The cache is a single JSON document keyed by canonical repository URL. Records carry the
// access status plus workflow fields owned by other tools, which are preserved across saves.
// FileStore replaces the file atomically so readers never observe a partial write.
package state
