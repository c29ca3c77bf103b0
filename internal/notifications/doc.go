// Package notifications delivers push notifications about bookmark
// enrichment via ntfy. When no topic is configured the service is a noop.
package notifications
