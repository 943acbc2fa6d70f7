// Package store persists disc jobs and their titles in SQLite.
//
// The database lives at the configured path, runs in WAL mode, and
// retries briefly on lock contention. The schema is embedded and
// versioned; a mismatched database must be cleared rather than
// migrated in place.
package store
