// Package role holds the static Avalon role catalog.
//
// Every role maps to exactly one Definition: an alignment and a set of tags
// describing what the role sees and how it is seen. Lookups are pure
// functions over a package-level table, so players and configurations carry
// only role ids and derive alignment on demand.
//
// The catalog also owns the official per-player-count alignment quotas and
// the validation of a role multiset against them.
package role
