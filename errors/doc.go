// Package errors provides structured error types for the journal.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the record path, the wire type name and
// the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidDiscriminant).
//		Path("subscription", "tag").
//		Type("eventtype").
//		Value(tag).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidDiscriminant(errors.PhaseDecode, path, 7, 2)
//	err := errors.AddressOverflow(entry, 32)
//
// The sentinels ErrInvalidDiscriminant, ErrUnsupportedRestore,
// ErrAddressOverflow, ErrStorageIO and ErrSpawn match any phase:
//
//	if errors.Is(err, errors.ErrAddressOverflow) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
