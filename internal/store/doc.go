// Package store persists bookmarks, the per-user entity catalog, the
// entity-bookmark evidence links, discovered page images, and the queue
// messages that drive the enrichment pipeline. Everything lives in one SQLite
// database; uniqueness constraints (not in-process locks) are the authority
// for cross-worker races.
package store
