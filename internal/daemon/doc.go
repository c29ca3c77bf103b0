// Package daemon coordinates the long-running Shelfmark process.
//
// It wires configuration, the bookmark store, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances,
// and serves the HTTP API the CLI talks to.
//
// Keep orchestration logic here: pipeline stages live in their own packages
// while the daemon focuses on startup, shutdown, and the API surface.
package daemon
