// Package store owns the persistence plumbing shared by the rest of the
// service: the PostgreSQL connection pool, the schema DDL, retention
// pruning for append-only tables, and the Redis client used by the
// content cache, the almanac cache, and the email queue.
//
// Domain packages run their own SQL against the *sql.DB this package
// hands out; store deliberately has no repository layer so each package
// keeps its queries next to the logic that needs them.
package store
