// Package wire defines the fixed-layout records a guest uses to ask the host
// to wait on several event sources at once, and a tagged view over them.
//
// # Records
//
// RawSubscription (48 bytes) and RawEvent (32 bytes) follow the WASI
// preview1 layout. Their field offsets come from WIT declarations run
// through the Canonical ABI layout calculator; Go struct layout is never
// consulted:
//
//	subscription  userdata u64 @0, tag u8 @8, payload @16
//	  clock       id u32 @16, timeout u64 @24, precision u64 @32, flags u16 @40
//	  fd          file-descriptor u32 @16
//	event         userdata u64 @0, error u16 @8, type u8 @10,
//	              nbytes u64 @16, flags u16 @24
//
// # Tagged View
//
// Subscription pairs the user data with an EventKind, a closed sum of Clock,
// Read and Write:
//
//	raw, _ := wire.Encode(wire.Subscription{
//	    UserData: 7,
//	    Event:    wire.Clock{ID: wire.ClockMonotonic, Timeout: 500, Precision: 1},
//	})
//	sub, err := wire.Decode(raw.ZeroPadding())
//
// Decode validates the tag before reading any payload byte and fails with
// errors.ErrInvalidDiscriminant for tags outside {clock, fd_read, fd_write}.
//
// # Padding
//
// Records received from a guest are normalized with ZeroPadding before they
// are hashed, logged or compared. Normalization zeroes inter-field padding,
// the inactive part of the union and the record tail; it is idempotent.
package wire
