package capnp

// rawPointer is a 64-bit wire pointer word as described in spec §4.C.
// The low two bits (three, for far pointers) are the tag; everything
// else is packed per the struct/list/far layouts below.
type rawPointer uint64

// pointerKind distinguishes the four on-wire pointer shapes.
type pointerKind int

const (
	structKind    pointerKind = 0
	listKind      pointerKind = 1
	farKind       pointerKind = 2
	doubleFarKind pointerKind = 6 // farKind with bit 2 set
	otherKind     pointerKind = 3 // interface pointers; unsupported by this core
)

func (p rawPointer) kind() pointerKind {
	k := pointerKind(p & 3)
	if k == farKind {
		return pointerKind(p & 7)
	}
	return k
}

// wordOffset is a signed word-granular displacement used by near
// pointers (relative to the pointer's own location).
type wordOffset int32

// resolve turns a near-pointer offset into an absolute address given
// the address immediately following the pointer word.
func (off wordOffset) resolve(afterPtr Address) (addr Address, ok bool) {
	if off == 0 {
		return afterPtr, true
	}
	a := afterPtr + Address(off*wordOffset(wordSize))
	return a, (a > afterPtr || off < 0) && (a < afterPtr || off > 0)
}

// offsetTo computes the near-pointer offset from the word after ptrAddr
// to target.
func offsetTo(ptrAddr, target Address) wordOffset {
	return wordOffset(target/Address(wordSize) - ptrAddr/Address(wordSize) - 1)
}

func (p rawPointer) offset() wordOffset {
	return wordOffset(int32(p) >> 2)
}

// --- struct pointers ---

func structPointer(off wordOffset, sz ObjectSize) rawPointer {
	return rawPointer(structKind) |
		rawPointer(uint32(off)<<2) |
		rawPointer(sz.dataWordCount())<<32 |
		rawPointer(sz.PointerCount)<<48
}

func (p rawPointer) structSize() ObjectSize {
	data := uint16(p >> 32)
	ptrs := uint16(p >> 48)
	return ObjectSize{DataSize: Size(data) * wordSize, PointerCount: ptrs}
}

// --- list pointers ---

type elemEncoding int

const (
	voidElem      elemEncoding = 0
	bitElem       elemEncoding = 1
	byte1Elem     elemEncoding = 2
	byte2Elem     elemEncoding = 3
	byte4Elem     elemEncoding = 4
	byte8Elem     elemEncoding = 5
	ptrElem       elemEncoding = 6
	compositeElem elemEncoding = 7
)

func listPointer(off wordOffset, enc elemEncoding, n int32) rawPointer {
	return rawPointer(listKind) |
		rawPointer(uint32(off)<<2) |
		rawPointer(enc)<<32 |
		rawPointer(uint32(n))<<35
}

func (p rawPointer) listEncoding() elemEncoding {
	return elemEncoding((p >> 32) & 7)
}

func (p rawPointer) listCount() int32 {
	return int32(p >> 35)
}

func (p rawPointer) elementSize() ObjectSize {
	switch p.listEncoding() {
	case voidElem, bitElem:
		return ObjectSize{}
	case byte1Elem:
		return ObjectSize{DataSize: 1}
	case byte2Elem:
		return ObjectSize{DataSize: 2}
	case byte4Elem:
		return ObjectSize{DataSize: 4}
	case byte8Elem:
		return ObjectSize{DataSize: 8}
	case ptrElem:
		return ObjectSize{PointerCount: 1}
	default:
		panic("elementSize called on composite or unknown list encoding")
	}
}

// totalListSize returns the byte size of the region a list pointer
// covers, starting at the address the pointer resolves to. For a
// composite list that address is the tag word itself, so the count
// includes that extra word: the caller's bounds check must guarantee
// the tag word is readable before it dereferences it, not just the
// elements that follow.
func (p rawPointer) totalListSize() (sz Size, ok bool) {
	n := p.listCount()
	switch p.listEncoding() {
	case voidElem:
		return 0, true
	case bitElem:
		return Size((n + 7) / 8), true
	case compositeElem:
		// n is the word count of the payload; +1 covers the tag word
		// at the start of the region (spec §4.C rule 3).
		return wordSize.times(n + 1)
	default:
		return p.elementSize().totalSize().times(n)
	}
}

// --- far pointers ---

func farPointer(seg SegmentID, padAddr Address) rawPointer {
	return rawPointer(farKind) | rawPointer(padAddr&^7) | rawPointer(seg)<<32
}

func doubleFarPointer(seg SegmentID, padAddr Address) rawPointer {
	return rawPointer(doubleFarKind) | rawPointer(padAddr&^7) | rawPointer(seg)<<32
}

func (p rawPointer) farSegment() SegmentID {
	return SegmentID(p >> 32)
}

func (p rawPointer) farAddress() Address {
	return Address(p &^ 7)
}

// landingPadToNear converts a far pointer's landing pad (far word +
// shape tag word) into the equivalent near pointer, with the far
// word's address substituted for the tag's offset field.
func landingPadToNear(far, tag rawPointer) rawPointer {
	return tag&^0xfffffffc | rawPointer(uint32(far&^3)>>1)
}

// --- interface / other pointers (unsupported; see spec §4.C rule 4) ---

func (p rawPointer) otherTag() uint32 {
	return uint32(p >> 32)
}
