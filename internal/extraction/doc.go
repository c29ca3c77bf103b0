// Package extraction fetches bookmarked pages, converts their HTML into
// markdown, and discovers candidate images for later vision analysis.
package extraction
