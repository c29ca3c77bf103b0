// Package llm wraps an OpenAI-compatible chat completion API with JSON-only
// text and vision requests. The client performs no retries of its own; the
// queue runtime classifies failures and schedules redelivery.
package llm
