// Package cards persists finished connect cards, their batches, and scan
// tokens in SQLite.
//
// Unlike the intake queue, this database is the durable record: cards stay
// here after the session that produced them is long gone. Tenant isolation
// is structural: every query carries an org id, and the unique index on
// (org_id, fingerprint) is the authoritative duplicate-image defense even
// when two items race past the pre-extraction check.
package cards
