package capnp

// Address is a byte offset within a segment.
type Address uint32

// Size is a size of a region of memory, in bytes.
type Size uint32

const (
	wordSize  Size = 8
	maxSize   Size = 1<<32 - 1
	maxDepth       = 64
)

// addSize returns the address sz past a.
func (a Address) addSize(sz Size) (b Address, ok bool) {
	x := uint64(a) + uint64(sz)
	if x > uint64(maxSize) {
		return 0, false
	}
	return Address(x), true
}

// element returns the address of the i'th element, where sz is the
// size of an element.
func (a Address) element(i int32, sz Size) (b Address, ok bool) {
	if i == 0 {
		return a, true
	}
	x := int64(a) + int64(i)*int64(sz)
	if x < 0 || x > int64(maxSize) {
		return 0, false
	}
	return Address(x), true
}

// DataOffset is a byte offset from the beginning of a struct's data section.
type DataOffset Size

// ObjectSize records the size of a struct or list's element: the size
// of the data section plus the number of pointers.
type ObjectSize struct {
	DataSize     Size
	PointerCount uint16
}

func (sz ObjectSize) totalSize() Size {
	return sz.DataSize + Size(sz.PointerCount)*wordSize
}

func (sz ObjectSize) isZero() bool {
	return sz.DataSize == 0 && sz.PointerCount == 0
}

func (sz ObjectSize) isValid() bool {
	return sz.DataSize <= 0xffff*wordSize && sz.PointerCount <= 0xffff
}

func (sz ObjectSize) dataWordCount() int16 {
	return int16(sz.DataSize / wordSize)
}

func (sz ObjectSize) totalWordCount() int32 {
	return int32(sz.dataWordCount()) + int32(sz.PointerCount)
}

// times returns sz*n, reporting overflow via ok.
func (sz Size) times(n int32) (_ Size, ok bool) {
	if n < 0 {
		return 0, false
	}
	x := uint64(sz) * uint64(n)
	if x > uint64(maxSize) {
		return 0, false
	}
	return Size(x), true
}

// addSize returns sz+other, reporting overflow via ok.
func (sz Size) addSize(other Size) (_ Size, ok bool) {
	x := uint64(sz) + uint64(other)
	if x > uint64(maxSize) {
		return 0, false
	}
	return Size(x), true
}

// padToWord rounds sz up to the next multiple of wordSize.
func (sz Size) padToWord() Size {
	return (sz + wordSize - 1) &^ (wordSize - 1)
}
