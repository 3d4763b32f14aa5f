// Package records persists job records for generation attempts in SQLite.
//
// Each generation attempt owns exactly one record. Status transitions are
// written synchronously at phase boundaries in the fixed order
// pending -> processing -> completed|failed, so readers never observe an
// impossible jump. The store, not the in-memory session, is authoritative:
// sessions are projections of it and may be rebuilt after a restart.
package records
