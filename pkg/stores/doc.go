// Package stores persists exploration results. It includes a SQLite store
// with embedded migrations, WAL mode for file databases and a private
// single-connection mode for :memory:, holding one row per exploration run
// and one row per explored configuration.
package stores
