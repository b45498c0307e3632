// Package store persists pipeline state in a relational database.
//
// Sessions, transcript segments, safety flags, notification records, and
// operator accounts share one schema. SQLite (modernc.org/sqlite) is the
// default backend; MySQL (go-sql-driver/mysql) is available for deployments
// that already run a shared database. Both use the same queries with `?`
// placeholders and store timestamps as RFC3339 strings.
//
// Segments and safety flags are append-only from the pipeline's point of view.
// The session summary is written with a conditional update so a non-empty
// summary is never replaced. SQLite writes retry briefly on SQLITE_BUSY so
// concurrent speaker ingests on one database file do not fail spuriously.
package store
