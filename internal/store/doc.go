// Package store provides SQLite-backed run history for desflat.
//
// Every elaboration recorded with --store appends one row to the runs table:
// the source path, the network digest, the flattened text and summary counts.
// Comparing a new digest with the latest run of the same source tells whether
// the flattened model changed between tool runs.
//
// # Ordering
//
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - All queries include: ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// # Schema
//
// PRAGMA user_version records the last applied migration. Runs recorded
// before version 3 have an empty ir_version. A history with a newer version
// than this build knows is refused.
//
// Run IDs are UUIDv7 strings. Digests are computed by ir.Digest.
package store
