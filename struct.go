package capnp

import "math"

// A Struct is a reference to a Cap'n Proto struct object: a data
// section plus a pointer section (spec §3).
type Struct struct {
	seg  *Segment
	off  Address
	size ObjectSize

	depthLimit uint
	flags      ptrFlags
}

// ToPtr returns s as a Ptr.
func (s Struct) ToPtr() Ptr {
	return Ptr{
		seg:        s.seg,
		off:        s.off,
		size:       s.size,
		depthLimit: s.depthLimit,
		flags:      s.flags | structPtrFlag,
	}
}

// IsValid reports whether s refers to an object.
func (s Struct) IsValid() bool { return s.seg != nil }

// Segment returns the segment s's data section lives in.
func (s Struct) Segment() *Segment { return s.seg }

// Size returns s's data/pointer section sizes.
func (s Struct) Size() ObjectSize { return s.size }

// readSize returns the size charged against the read limiter.
func (s Struct) readSize() Size {
	if s.seg == nil {
		return 0
	}
	return s.size.totalSize()
}

func (s Struct) pointerAddress(i uint16) Address {
	addr, _ := s.off.addSize(s.size.DataSize)
	addr, _ = addr.addSize(Size(i) * wordSize)
	return addr
}

// Ptr returns the i'th pointer-section slot. Returns the null
// reference if i is beyond the struct's pointer section (spec §4.E:
// struct field reads are saturating).
func (s Struct) Ptr(i uint16) (Ptr, error) {
	if s.seg == nil || i >= s.size.PointerCount {
		return Ptr{}, nil
	}
	if s.depthLimit == 0 {
		return Ptr{}, errDepthLimit
	}
	return s.seg.readPtr(s.pointerAddress(i), s.depthLimit)
}

// SetPtr sets the i'th pointer-section slot to point at src, deep
// copying src into s's message first if src lives elsewhere (spec
// §4.E rules 1-5, §4.F).
func (s Struct) SetPtr(i uint16, src Ptr) error {
	if s.seg == nil || i >= s.size.PointerCount {
		return errObjectSize
	}
	if s.flags&isListMember != 0 {
		// spec §4.E rule 4: a composite-list element has no back-pointer
		// slot of its own to rewrite.
		return errListMemberBackPtr
	}
	resolved, err := resolvePointerForWrite(nil, s.seg, src)
	if err != nil {
		return err
	}
	return s.seg.writePtr(s.pointerAddress(i), resolved)
}

// --- data-section field accessors (spec §4.A, §4.E) ---

func (s Struct) dataAddress(off DataOffset, sz Size) (Address, bool) {
	if s.seg == nil || Size(off)+sz > s.size.DataSize {
		return 0, false
	}
	a, _ := s.off.addSize(Size(off))
	return a, true
}

// Uint8 reads an 8-bit field. Reads beyond the data section return 0
// (spec invariant 4: bounds saturation).
func (s Struct) Uint8(off DataOffset) uint8 {
	addr, ok := s.dataAddress(off, 1)
	if !ok {
		return 0
	}
	return s.seg.readUint8(addr)
}

// SetUint8 writes an 8-bit field, returning an error if off lies
// outside the data section.
func (s Struct) SetUint8(off DataOffset, v uint8) error {
	addr, ok := s.dataAddress(off, 1)
	if !ok {
		return errFieldBounds
	}
	s.seg.writeUint8(addr, v)
	return nil
}

func (s Struct) Uint16(off DataOffset) uint16 {
	addr, ok := s.dataAddress(off, 2)
	if !ok {
		return 0
	}
	return s.seg.readUint16(addr)
}

func (s Struct) SetUint16(off DataOffset, v uint16) error {
	addr, ok := s.dataAddress(off, 2)
	if !ok {
		return errFieldBounds
	}
	s.seg.writeUint16(addr, v)
	return nil
}

func (s Struct) Uint32(off DataOffset) uint32 {
	addr, ok := s.dataAddress(off, 4)
	if !ok {
		return 0
	}
	return s.seg.readUint32(addr)
}

func (s Struct) SetUint32(off DataOffset, v uint32) error {
	addr, ok := s.dataAddress(off, 4)
	if !ok {
		return errFieldBounds
	}
	s.seg.writeUint32(addr, v)
	return nil
}

func (s Struct) Uint64(off DataOffset) uint64 {
	addr, ok := s.dataAddress(off, 8)
	if !ok {
		return 0
	}
	return s.seg.readUint64(addr)
}

func (s Struct) SetUint64(off DataOffset, v uint64) error {
	addr, ok := s.dataAddress(off, 8)
	if !ok {
		return errFieldBounds
	}
	s.seg.writeUint64(addr, v)
	return nil
}

func (s Struct) Int8(off DataOffset) int8   { return int8(s.Uint8(off)) }
func (s Struct) Int16(off DataOffset) int16 { return int16(s.Uint16(off)) }
func (s Struct) Int32(off DataOffset) int32 { return int32(s.Uint32(off)) }
func (s Struct) Int64(off DataOffset) int64 { return int64(s.Uint64(off)) }

func (s Struct) SetInt8(off DataOffset, v int8) error   { return s.SetUint8(off, uint8(v)) }
func (s Struct) SetInt16(off DataOffset, v int16) error { return s.SetUint16(off, uint16(v)) }
func (s Struct) SetInt32(off DataOffset, v int32) error { return s.SetUint32(off, uint32(v)) }
func (s Struct) SetInt64(off DataOffset, v int64) error { return s.SetUint64(off, uint64(v)) }

// Bit reads a single bit from the data section, where off is a bit
// index (spec §4.A bit utilities).
func (s Struct) Bit(off Size) bool {
	addr, ok := s.dataAddress(DataOffset(off/8), 1)
	if !ok {
		return false
	}
	return s.seg.readUint8(addr)&(1<<(off%8)) != 0
}

// SetBit sets or clears a single bit in the data section.
func (s Struct) SetBit(off Size, v bool) error {
	addr, ok := s.dataAddress(DataOffset(off/8), 1)
	if !ok {
		return errFieldBounds
	}
	b := s.seg.readUint8(addr)
	if v {
		b |= 1 << (off % 8)
	} else {
		b &^= 1 << (off % 8)
	}
	s.seg.writeUint8(addr, b)
	return nil
}

// Float32 reads a 32-bit float field, XORing the stored bits against
// def so that a field equal to its schema default reads back as def
// even though it is stored as all zeros (spec §4.A, §8 invariant 3).
func (s Struct) Float32(off DataOffset, def float32) float32 {
	v := s.Uint32(off) ^ math.Float32bits(def)
	return math.Float32frombits(v)
}

// SetFloat32 stores f XORed against def, so that f == def serializes
// to zeros.
func (s Struct) SetFloat32(off DataOffset, f, def float32) error {
	return s.SetUint32(off, math.Float32bits(f)^math.Float32bits(def))
}

// Float64 is the 64-bit analog of Float32.
func (s Struct) Float64(off DataOffset, def float64) float64 {
	v := s.Uint64(off) ^ math.Float64bits(def)
	return math.Float64frombits(v)
}

// SetFloat64 stores f XORed against def.
//
// spec §9's Open Question: the C source this library descends from
// appears to XOR f against itself (always zero) rather than against def,
// which would make every field encode as zero. Treated as a bug in
// the source; this implements the obviously-correct u.f = f; d.f =
// def variant.
func (s Struct) SetFloat64(off DataOffset, f, def float64) error {
	return s.SetUint64(off, math.Float64bits(f)^math.Float64bits(def))
}

// copyStructFields copies src's data section into dst and links dst's
// pointer-section slots to (possibly deep-copied) equivalents of
// src's pointers. tree may be nil; a nil tree is created on demand the
// first time a cross-message pointer is actually encountered.
func copyStructFields(tree *copyTree, dst, src Struct) error {
	if src.seg == nil {
		return nil
	}
	n := src.size.DataSize
	if dst.size.DataSize < n {
		n = dst.size.DataSize
	}
	copy(dst.seg.slice(dst.off, n), src.seg.slice(src.off, n))

	np := src.size.PointerCount
	if dst.size.PointerCount < np {
		np = dst.size.PointerCount
	}
	for i := uint16(0); i < np; i++ {
		child, err := src.Ptr(i)
		if err != nil {
			return err
		}
		if tree == nil && child.IsValid() && child.seg.msg != dst.seg.msg {
			tree = newCopyTree()
		}
		resolved, err := resolvePointerForWrite(tree, dst.seg, child)
		if err != nil {
			return err
		}
		if err := dst.seg.writePtr(dst.pointerAddress(i), resolved); err != nil {
			return err
		}
	}
	return nil
}
