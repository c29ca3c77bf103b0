// Package analysis extracts creative-work mentions from bookmark markdown
// using a JSON-only LLM completion.
package analysis
