// Package enginetest assembles minimal wasm modules for tests that need a
// real wazero instance.
package enginetest

// Global is an exported i32 global.
type Global struct {
	Name    string
	Value   int32
	Mutable bool
}

// Module returns a module that exports a memory of the given number of
// pages as "memory" plus the given globals. It contains no code.
func Module(pages uint32, globals ...Global) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// memory section: one memory, min pages, no max
	mem := uleb(nil, 1)
	mem = append(mem, 0x00)
	mem = uleb(mem, uint64(pages))
	out = section(out, 5, mem)

	if len(globals) > 0 {
		gs := uleb(nil, uint64(len(globals)))
		for _, g := range globals {
			gs = append(gs, 0x7f) // i32
			if g.Mutable {
				gs = append(gs, 0x01)
			} else {
				gs = append(gs, 0x00)
			}
			gs = append(gs, 0x41) // i32.const
			gs = sleb(gs, int64(g.Value))
			gs = append(gs, 0x0b) // end
		}
		out = section(out, 6, gs)
	}

	exports := uleb(nil, uint64(1+len(globals)))
	exports = name(exports, "memory")
	exports = append(exports, 0x02, 0x00)
	for i, g := range globals {
		exports = name(exports, g.Name)
		exports = append(exports, 0x03)
		exports = uleb(exports, uint64(i))
	}
	return section(out, 7, exports)
}

// Forwarder returns a module that imports module.fn with params i32
// parameters and one i32 result, and exports a function of the same name
// and type that forwards its arguments to the import. When pages is
// non-zero the module also exports a memory as "memory".
func Forwarder(pages uint32, module, fn string, params int) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// type section: (i32 * params) -> i32
	ty := uleb(nil, 1)
	ty = append(ty, 0x60)
	ty = uleb(ty, uint64(params))
	for range params {
		ty = append(ty, 0x7f)
	}
	ty = append(ty, 0x01, 0x7f)
	out = section(out, 1, ty)

	imp := uleb(nil, 1)
	imp = name(imp, module)
	imp = name(imp, fn)
	imp = append(imp, 0x00, 0x00) // func, type 0
	out = section(out, 2, imp)

	out = section(out, 3, []byte{0x01, 0x00})

	if pages > 0 {
		mem := uleb(nil, 1)
		mem = append(mem, 0x00)
		mem = uleb(mem, uint64(pages))
		out = section(out, 5, mem)
	}

	exports := 1
	if pages > 0 {
		exports++
	}
	ex := uleb(nil, uint64(exports))
	if pages > 0 {
		ex = name(ex, "memory")
		ex = append(ex, 0x02, 0x00)
	}
	ex = name(ex, fn)
	ex = append(ex, 0x00, 0x01) // func 1, after the import
	out = section(out, 7, ex)

	body := []byte{0x00} // no locals
	for i := range params {
		body = append(body, 0x20) // local.get
		body = uleb(body, uint64(i))
	}
	body = append(body, 0x10, 0x00, 0x0b) // call 0, end
	code := uleb(nil, 1)
	code = uleb(code, uint64(len(body)))
	code = append(code, body...)
	return section(out, 10, code)
}

func section(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = uleb(out, uint64(len(body)))
	return append(out, body...)
}

func name(out []byte, s string) []byte {
	out = uleb(out, uint64(len(s)))
	return append(out, s...)
}

func uleb(out []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(out []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
