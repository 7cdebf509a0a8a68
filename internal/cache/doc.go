// Package cache holds the in-memory mirror of guilds, private channels and
// the current user, built from gateway dispatch events.
//
// Guild entries are keyed by id and mutated in place after their first
// insert. Every accessor returns a deep copy, so callers never observe a
// half-applied update and can never mutate cached state.
package cache
