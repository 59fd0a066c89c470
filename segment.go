package capnp

import "encoding/binary"

// SegmentID identifies a segment within a Message.
type SegmentID uint32

// localSegment is reserved in the segment id namespace for copy-tracking
// bookkeeping and never appears on the wire. The copy tree itself is a
// Go map (copy.go) and allocates nothing under this id.
const localSegment SegmentID = ^SegmentID(0)

// A Segment is a contiguous, 8-byte-aligned allocation arena that is
// part of a Message. Its backing array can move: a SingleSegment arena
// grows a segment by reallocating it. Struct, List and Ptr address the
// segment by offset; a slice taken earlier from Data or ToData keeps
// the old array and does not see the reallocation.
type Segment struct {
	msg  *Message
	id   SegmentID
	data []byte

	// syntheticBase is a proxy for "base address" in the address-keyed
	// index described by spec §3/§4.B; see Message.segmentAtBase.
	syntheticBase uint64
}

// Message returns the message that owns s.
func (s *Segment) Message() *Message { return s.msg }

// ID returns the segment's id within its message.
func (s *Segment) ID() SegmentID { return s.id }

// Data returns the segment's current contents.
func (s *Segment) Data() []byte { return s.data }

func (s *Segment) inBounds(addr Address) bool {
	return addr < Address(len(s.data))
}

func (s *Segment) regionInBounds(base Address, sz Size) bool {
	end, ok := base.addSize(sz)
	return ok && end <= Address(len(s.data))
}

func (s *Segment) slice(base Address, sz Size) []byte {
	return s.data[base : base+Address(sz)]
}

func (s *Segment) readUint8(addr Address) uint8  { return s.slice(addr, 1)[0] }
func (s *Segment) readUint16(addr Address) uint16 {
	return binary.LittleEndian.Uint16(s.slice(addr, 2))
}
func (s *Segment) readUint32(addr Address) uint32 {
	return binary.LittleEndian.Uint32(s.slice(addr, 4))
}
func (s *Segment) readUint64(addr Address) uint64 {
	return binary.LittleEndian.Uint64(s.slice(addr, 8))
}
func (s *Segment) readRawPointer(addr Address) rawPointer {
	return rawPointer(s.readUint64(addr))
}

func (s *Segment) writeUint8(addr Address, v uint8) { s.slice(addr, 1)[0] = v }
func (s *Segment) writeUint16(addr Address, v uint16) {
	binary.LittleEndian.PutUint16(s.slice(addr, 2), v)
}
func (s *Segment) writeUint32(addr Address, v uint32) {
	binary.LittleEndian.PutUint32(s.slice(addr, 4), v)
}
func (s *Segment) writeUint64(addr Address, v uint64) {
	binary.LittleEndian.PutUint64(s.slice(addr, 8), v)
}
func (s *Segment) writeRawPointer(addr Address, v rawPointer) {
	s.writeUint64(addr, uint64(v))
}

// root treats the first word of the segment as a 1-element pointer
// list, which is how the root pointer of a message is addressed.
func (s *Segment) root() PointerList {
	sz := ObjectSize{PointerCount: 1}
	if !s.regionInBounds(0, sz.totalSize()) {
		return PointerList{}
	}
	return PointerList{List{seg: s, length: 1, size: sz, depthLimit: s.msg.depthLimit()}}
}

func (s *Segment) lookupSegment(id SegmentID) (*Segment, error) {
	if s.id == id {
		return s, nil
	}
	return s.msg.Segment(id)
}

// readPtr decodes the pointer word at paddr, following any far
// indirection, and returns the typed reference it names.
func (s *Segment) readPtr(paddr Address, depthLimit uint) (Ptr, error) {
	s, base, val, err := s.resolveFarPointer(paddr)
	if err != nil {
		return Ptr{}, err
	}
	if val == 0 {
		return Ptr{}, nil
	}
	if depthLimit == 0 {
		return Ptr{}, errDepthLimit
	}
	switch val.kind() {
	case structKind:
		st, err := s.readStructPtr(base, val)
		if err != nil {
			return Ptr{}, err
		}
		if !s.msg.ReadLimiter().canRead(st.readSize()) {
			return Ptr{}, errReadLimit
		}
		st.depthLimit = depthLimit - 1
		return st.ToPtr(), nil
	case listKind:
		lp, err := s.readListPtr(base, val)
		if err != nil {
			return Ptr{}, err
		}
		if !s.msg.ReadLimiter().canRead(lp.readSize()) {
			return Ptr{}, errReadLimit
		}
		lp.depthLimit = depthLimit - 1
		return lp.ToPtr(), nil
	default:
		// Other/interface pointers: unsupported, spec §4.C rule 4.
		return Ptr{}, nil
	}
}

func (s *Segment) readStructPtr(base Address, val rawPointer) (Struct, error) {
	addr, ok := val.offset().resolve(base)
	if !ok {
		return Struct{}, errPointerAddress
	}
	sz := val.structSize()
	if !s.regionInBounds(addr, sz.totalSize()) {
		return Struct{}, errPointerAddress
	}
	return Struct{seg: s, off: addr, size: sz}, nil
}

func (s *Segment) readListPtr(base Address, val rawPointer) (List, error) {
	addr, ok := val.offset().resolve(base)
	if !ok {
		return List{}, errPointerAddress
	}
	lsize, ok := val.totalListSize()
	if !ok {
		return List{}, errOverflow
	}
	if !s.regionInBounds(addr, lsize) {
		return List{}, errPointerAddress
	}
	switch val.listEncoding() {
	case compositeElem:
		tag := s.readRawPointer(addr)
		addr, ok = addr.addSize(wordSize)
		if !ok {
			return List{}, errOverflow
		}
		if tag.kind() != structKind {
			return List{}, errBadTag
		}
		sz := tag.structSize()
		n := int32(tag.offset())
		tsize, ok := sz.totalSize().times(n)
		if !ok {
			return List{}, errOverflow
		}
		if !s.regionInBounds(addr, tsize) {
			return List{}, errPointerAddress
		}
		return List{seg: s, size: sz, off: addr, length: n, flags: isCompositeList}, nil
	case bitElem:
		return List{seg: s, off: addr, length: val.listCount(), flags: isBitList}, nil
	default:
		return List{seg: s, size: val.elementSize(), off: addr, length: val.listCount()}, nil
	}
}

// resolveFarPointer follows zero, one, or two levels of far-pointer
// indirection, returning the segment, base address, and raw pointer
// value to decode next.
func (s *Segment) resolveFarPointer(paddr Address) (dst *Segment, base Address, val rawPointer, err error) {
	raw := s.readRawPointer(paddr)
	switch raw.kind() {
	case doubleFarKind:
		padSeg, err := s.lookupSegment(raw.farSegment())
		if err != nil {
			return nil, 0, 0, err
		}
		padAddr := raw.farAddress()
		if !padSeg.regionInBounds(padAddr, wordSize*2) {
			return nil, 0, 0, errPointerAddress
		}
		far := padSeg.readRawPointer(padAddr)
		if far.kind() != farKind {
			return nil, 0, 0, errBadLandingPad
		}
		tagAddr, ok := padAddr.addSize(wordSize)
		if !ok {
			return nil, 0, 0, errOverflow
		}
		tag := padSeg.readRawPointer(tagAddr)
		if k := tag.kind(); (k != structKind && k != listKind) || tag.offset() != 0 {
			return nil, 0, 0, errBadLandingPad
		}
		dst, err = s.lookupSegment(far.farSegment())
		if err != nil {
			return nil, 0, 0, err
		}
		return dst, 0, landingPadToNear(far, tag), nil
	case farKind:
		dst, err := s.lookupSegment(raw.farSegment())
		if err != nil {
			return nil, 0, 0, err
		}
		padAddr := raw.farAddress()
		if !dst.regionInBounds(padAddr, wordSize) {
			return nil, 0, 0, errPointerAddress
		}
		base, ok := padAddr.addSize(wordSize)
		if !ok {
			return nil, 0, 0, errOverflow
		}
		return dst, base, dst.readRawPointer(padAddr), nil
	default:
		base, ok := paddr.addSize(wordSize)
		if !ok {
			return nil, 0, 0, errOverflow
		}
		return s, base, raw, nil
	}
}

// writePtr encodes a pointer at off so that it refers to src. src must
// already live in s's message: callers (Struct.SetPtr, PointerList.Set,
// copyStructFields) pass cross-message targets through
// resolvePointerForWrite (copy.go), which deep-copies them (spec §4.F),
// before calling writePtr (spec §4.E rule 2).
func (s *Segment) writePtr(off Address, src Ptr) error {
	if !src.IsValid() {
		s.writeRawPointer(off, 0)
		return nil
	}
	if src.seg.msg != s.msg {
		panic("writePtr: src does not live in the destination message")
	}

	var srcAddr Address
	var srcRaw rawPointer
	switch src.flags.kind() {
	case structPtrFlag:
		st := src.Struct()
		if st.size.isZero() {
			// Zero-sized structs always encode with offset -1 so they are
			// never confused with a null pointer.
			s.writeRawPointer(off, structPointer(-1, ObjectSize{}))
			return nil
		}
		srcAddr = st.off
		srcRaw = structPointer(0, st.size)
	case listPtrFlag:
		l := src.List()
		srcAddr = l.off
		if l.flags&isCompositeList != 0 {
			srcAddr -= Address(wordSize)
		}
		srcRaw = l.raw()
	default:
		// Interface/other pointers are unsupported; treat as null.
		s.writeRawPointer(off, 0)
		return nil
	}

	switch {
	case src.seg == s:
		s.writeRawPointer(off, srcRaw.withOffset(offsetTo(off, srcAddr)))
		return nil
	case hasCapacity(src.seg.data, wordSize):
		// Single far pointer: landing pad lives next to the data.
		_, padAddr, err := alloc(src.seg, wordSize)
		if err != nil {
			return err
		}
		src.seg.writeRawPointer(padAddr, srcRaw.withOffset(offsetTo(padAddr, srcAddr)))
		s.writeRawPointer(off, farPointer(src.seg.id, padAddr))
		return nil
	default:
		// Double far pointer: scratch landing pad allocated wherever there's room.
		padSeg, padAddr, err := alloc(s, wordSize*2)
		if err != nil {
			return err
		}
		padSeg.writeRawPointer(padAddr, farPointer(src.seg.id, srcAddr))
		padSeg.writeRawPointer(padAddr+Address(wordSize), srcRaw)
		s.writeRawPointer(off, doubleFarPointer(padSeg.id, padAddr))
		return nil
	}
}

func (p rawPointer) withOffset(off wordOffset) rawPointer {
	return p&^0xfffffffc | rawPointer(uint32(off)<<2)
}

func hasCapacity(data []byte, sz Size) bool {
	return Size(cap(data)-len(data)) >= sz
}
