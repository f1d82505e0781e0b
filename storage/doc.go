// Package storage provides the durable record sequences a journal is
// written to.
//
// Every backend offers the same contract: Append persists one record
// atomically, Records yields records in append order, and a record
// handed to Append either becomes fully visible or not at all.
//
//	Memory   process-local, for tests and offline tools
//	File     framed append-only file with checksums and an advisory lock
//	SQLite   one row per record, sequence assigned in-transaction
//	Redis    one stream entry per record
//
// Open selects a backend from a Config.
package storage
