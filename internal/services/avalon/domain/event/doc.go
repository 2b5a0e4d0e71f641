// Package event records the append-only, audience-scoped log of a match.
//
// Every entry is either public or private. Private entries carry audience
// tags of the form player:<id> or alignment:<name>; the set of tags is open
// so new audiences need no schema change. One log serves every viewer: the
// query helpers project it for a player, an alignment, or an omniscient
// administrator without duplicating entries.
//
// Logs serialize to newline-delimited JSON, one event per line.
package event
