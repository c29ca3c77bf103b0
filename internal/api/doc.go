// Package api defines the transport types served by the daemon's HTTP
// endpoints and the client the CLI uses to call them.
//
// The types here are deliberately flat JSON mirrors of the store models so
// the daemon and CLI can evolve independently of the database schema.
package api
