// Package sqlstore implements the search index on top of bun, for Postgres
// and SQLite, with an optional read-through cache.
package sqlstore
