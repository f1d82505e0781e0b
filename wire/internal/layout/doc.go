// Package layout computes Canonical ABI layouts for the wire records and
// normalizes their padding.
//
// The records crossing the guest/host boundary are declared once as WIT
// types. The calculator turns each declaration into an Info tree of sizes,
// alignments, field offsets and variant cases. Nothing in the wire package
// depends on how the Go compiler lays out structs: every offset comes from
// these tables.
//
// # Layout Rules
//
//   - Primitives: size equals alignment (u8=1, u16=2, u32=4, u64=8)
//   - Records: fields laid out sequentially with padding for alignment
//   - Variants: discriminant followed by the largest payload case, aligned
//     to the widest case
//   - Enums: discriminant only
//
// # Normalization
//
//	layout.Normalize(info, buf)
//
// zeroes every byte of buf that is not part of a named field or of the
// active variant case, recursing into nested records.
//
// This package is internal to wire.
package layout
