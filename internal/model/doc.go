// Package model defines the chat platform entities mirrored by the gateway cache.
//
// Conventions:
//   - IDs: Snowflake strings, compared by value
//   - Optional wire fields are pointers (or nil slices) so that partial
//     updates can be told apart from explicit zero values
//   - Merge methods copy only fields present in the update; Clone methods
//     return deep copies safe to hand to other goroutines
package model
