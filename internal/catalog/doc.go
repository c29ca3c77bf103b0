// Package catalog resolves entity mentions extracted from bookmarks against
// a per-user catalog of creative works, deduplicated by normalized name.
package catalog
