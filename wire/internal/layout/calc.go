package layout

import (
	"go.bytecodealliance.org/wit"
)

// Info is the computed layout of one WIT type.
type Info struct {
	FieldOffs map[string]uint32

	// Fields lists record fields in declaration order.
	Fields []Field

	// Cases lists variant cases in discriminant order.
	Cases []Case

	Size  uint32
	Align uint32

	// DiscSize and PayloadOffset are set for variants and enums.
	DiscSize      uint32
	PayloadOffset uint32
}

// Field is a record field at a fixed offset.
type Field struct {
	Name   string
	Info   Info
	Offset uint32
}

// Case is a variant case. Payload is nil for cases without a payload.
type Case struct {
	Payload *Info
	Name    string
}

// IsVariant reports whether i describes a variant with payload cases.
func (i Info) IsVariant() bool {
	return len(i.Cases) > 0
}

type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.calculateRecord(kind)
	case *wit.Variant:
		info = c.calculateVariant(kind)
	case *wit.Enum:
		info = c.calculateEnum(kind)
	case *wit.Flags:
		info = c.calculateFlags(kind)
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

func (c *Calculator) calculateRecord(r *wit.Record) Info {
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1}
	}

	fieldOffs := make(map[string]uint32, len(r.Fields))
	fields := make([]Field, 0, len(r.Fields))
	maxAlign := uint32(1)
	offset := uint32(0)

	for _, field := range r.Fields {
		fieldLayout := c.Calculate(field.Type)

		offset = AlignTo(offset, fieldLayout.Align)
		fieldOffs[field.Name] = offset
		fields = append(fields, Field{Name: field.Name, Offset: offset, Info: fieldLayout})

		if fieldLayout.Align > maxAlign {
			maxAlign = fieldLayout.Align
		}

		offset += fieldLayout.Size
	}

	totalSize := AlignTo(offset, maxAlign)

	return Info{
		Size:      totalSize,
		Align:     maxAlign,
		FieldOffs: fieldOffs,
		Fields:    fields,
	}
}

func (c *Calculator) calculateVariant(v *wit.Variant) Info {
	if len(v.Cases) == 0 {
		return Info{Size: 0, Align: 1}
	}

	discSize := DiscriminantSize(len(v.Cases))

	maxAlign := discSize
	maxSize := uint32(0)
	cases := make([]Case, len(v.Cases))

	for i, cs := range v.Cases {
		cases[i].Name = cs.Name
		if cs.Type != nil {
			caseLayout := c.Calculate(cs.Type)
			cases[i].Payload = &caseLayout
			if caseLayout.Align > maxAlign {
				maxAlign = caseLayout.Align
			}
			if caseLayout.Size > maxSize {
				maxSize = caseLayout.Size
			}
		}
	}

	payloadOffset := AlignTo(discSize, maxAlign)
	totalSize := AlignTo(payloadOffset+maxSize, maxAlign)

	return Info{
		Size:          totalSize,
		Align:         maxAlign,
		Cases:         cases,
		DiscSize:      discSize,
		PayloadOffset: payloadOffset,
	}
}

func (c *Calculator) calculateEnum(e *wit.Enum) Info {
	size := DiscriminantSize(len(e.Cases))
	return Info{Size: size, Align: size, DiscSize: size}
}

func (c *Calculator) calculateFlags(f *wit.Flags) Info {
	numFlags := len(f.Flags)

	if numFlags == 0 {
		return Info{Size: 0, Align: 1}
	}

	if numFlags <= 8 {
		return Info{Size: 1, Align: 1}
	} else if numFlags <= 16 {
		return Info{Size: 2, Align: 2}
	} else if numFlags <= 32 {
		return Info{Size: 4, Align: 4}
	}
	return Info{Size: 8, Align: 8}
}

// Locate resolves a path of field and case names to an absolute offset
// within i. A case name selects the variant payload.
func (i Info) Locate(path ...string) (uint32, Info, bool) {
	offset := uint32(0)
	cur := i
	for _, name := range path {
		found := false
		for _, f := range cur.Fields {
			if f.Name == name {
				offset += f.Offset
				cur = f.Info
				found = true
				break
			}
		}
		if !found {
			for _, cs := range cur.Cases {
				if cs.Name == name && cs.Payload != nil {
					offset += cur.PayloadOffset
					cur = *cs.Payload
					found = true
					break
				}
			}
		}
		if !found {
			return 0, Info{}, false
		}
	}
	return offset, cur, true
}

// AlignTo rounds offset up to a multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// DiscriminantSize returns the discriminant width for a variant or enum
// with numCases cases.
func DiscriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}
