package layout

// Range is a half-open byte range [Start, End).
type Range struct {
	Start uint32
	End   uint32
}

// Normalize zeroes every byte of buf not covered by a named field or the
// active case of a variant. It reports false when buf is shorter than
// info.Size or when a variant discriminant is out of range; in that case
// the whole payload region of that variant is zeroed and the discriminant
// itself is left untouched.
func Normalize(info Info, buf []byte) bool {
	if uint32(len(buf)) < info.Size {
		return false
	}
	region := buf[:info.Size]
	return walk(info, region, 0, func(r Range) {
		clear(region[r.Start:r.End])
	})
}

// Padding returns the byte ranges of buf that Normalize would zero, in
// ascending order. Adjacent ranges are not merged.
func Padding(info Info, buf []byte) ([]Range, bool) {
	if uint32(len(buf)) < info.Size {
		return nil, false
	}
	var gaps []Range
	ok := walk(info, buf[:info.Size], 0, func(r Range) {
		gaps = append(gaps, r)
	})
	return gaps, ok
}

// walk visits the gaps of info laid out at base within buf. Gaps are
// reported in ascending order; nested records are visited before the
// gaps that follow them.
func walk(info Info, buf []byte, base uint32, gap func(Range)) bool {
	emit := func(start, end uint32) {
		if end > start {
			gap(Range{Start: base + start, End: base + end})
		}
	}

	switch {
	case len(info.Fields) > 0:
		ok := true
		cursor := uint32(0)
		for _, f := range info.Fields {
			emit(cursor, f.Offset)
			if !walk(f.Info, buf, base+f.Offset, gap) {
				ok = false
			}
			cursor = f.Offset + f.Info.Size
		}
		emit(cursor, info.Size)
		return ok

	case info.IsVariant():
		disc := readDisc(buf[base:], info.DiscSize)
		emit(info.DiscSize, info.PayloadOffset)
		if disc >= uint32(len(info.Cases)) {
			emit(info.PayloadOffset, info.Size)
			return false
		}
		cursor := info.PayloadOffset
		ok := true
		if payload := info.Cases[disc].Payload; payload != nil {
			ok = walk(*payload, buf, base+cursor, gap)
			cursor += payload.Size
		}
		emit(cursor, info.Size)
		return ok

	default:
		return true
	}
}

// ReadDisc reads a little-endian discriminant of the given width.
func ReadDisc(buf []byte, size uint32) uint32 {
	return readDisc(buf, size)
}

func readDisc(buf []byte, size uint32) uint32 {
	switch size {
	case 1:
		return uint32(buf[0])
	case 2:
		return uint32(buf[0]) | uint32(buf[1])<<8
	default:
		return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	}
}
