// Package storage persists contacts, recurrence rules, and the message log.
//
// The scheduler consumes a narrow slice of the Store interface
// (ListActiveRules / RecordFired / AppendLog); the rest serves the
// management surface and the nightly maintenance job. Durability lives
// here entirely — the scheduler keeps no state across restarts.
package storage
