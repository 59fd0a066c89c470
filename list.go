package capnp

import "strconv"

// listFlags carries the layout bits that distinguish a composite list
// (preceded by a tag word) and a bit list (sub-byte elements) from a
// plain fixed-width element list.
type listFlags = ptrFlags

// A List is a reference to a Cap'n Proto list object (spec §3).
type List struct {
	seg    *Segment
	off    Address // first element, past any composite-list tag word
	length int32
	size   ObjectSize

	depthLimit uint
	flags      listFlags
}

// newPrimitiveList allocates n elements of sz bytes each, preferring s.
func newPrimitiveList(s *Segment, sz Size, n int32) (List, error) {
	total, ok := sz.times(n)
	if !ok {
		return List{}, errOverflow
	}
	seg, addr, err := alloc(s, total)
	if err != nil {
		return List{}, err
	}
	return List{seg: seg, off: addr, length: n, size: ObjectSize{DataSize: sz}, depthLimit: maxDepth}, nil
}

// NewCompositeList creates a new composite list of n structs sized sz,
// preferring placement in s (spec §4.C: composite list tag word).
func NewCompositeList(s *Segment, sz ObjectSize, n int32) (List, error) {
	if !sz.isValid() {
		return List{}, errObjectSize
	}
	total, ok := sz.totalSize().times(n)
	if !ok {
		return List{}, errOverflow
	}
	total, ok = total.addSize(wordSize)
	if !ok {
		return List{}, errOverflow
	}
	seg, addr, err := alloc(s, total)
	if err != nil {
		return List{}, err
	}
	seg.writeRawPointer(addr, structPointer(wordOffset(n), sz))
	first, _ := addr.addSize(wordSize)
	return List{seg: seg, off: first, length: n, size: sz, depthLimit: maxDepth, flags: isCompositeList}, nil
}

// ToPtr returns p as a Ptr.
func (p List) ToPtr() Ptr {
	return Ptr{
		seg:        p.seg,
		off:        p.off,
		size:       p.size,
		length:     p.length,
		depthLimit: p.depthLimit,
		flags:      p.flags | listPtrFlag,
	}
}

// Segment returns the segment p's elements live in.
func (p List) Segment() *Segment { return p.seg }

// IsValid reports whether p refers to a list object.
func (p List) IsValid() bool { return p.seg != nil }

// Len returns the number of elements in p.
func (p List) Len() int {
	if p.seg == nil {
		return 0
	}
	return int(p.length)
}

func (p List) readSize() Size {
	if p.seg == nil {
		return 0
	}
	e := p.size.totalSize()
	if e == 0 {
		e = wordSize
	}
	sz, ok := e.times(p.length)
	if !ok {
		return maxSize
	}
	return sz
}

// allocSize is the number of bytes p's payload occupies, including a
// composite list's tag word, for copying purposes (spec §4.F step 1).
func (p List) allocSize() Size {
	if p.seg == nil {
		return 0
	}
	if p.flags&isBitList != 0 {
		return Size((p.length + 7) / 8)
	}
	sz, _ := p.size.totalSize().times(p.length)
	if p.flags&isCompositeList == 0 {
		return sz
	}
	return sz + wordSize
}

// raw returns the equivalent raw list pointer with a zero offset.
func (p List) raw() rawPointer {
	if p.seg == nil {
		return 0
	}
	if p.flags&isCompositeList != 0 {
		return listPointer(0, compositeElem, p.length*p.size.totalWordCount())
	}
	if p.flags&isBitList != 0 {
		return listPointer(0, bitElem, p.length)
	}
	if p.size.PointerCount == 1 && p.size.DataSize == 0 {
		return listPointer(0, ptrElem, p.length)
	}
	if p.size.PointerCount != 0 {
		panic(errListSize)
	}
	switch p.size.DataSize {
	case 0:
		return listPointer(0, voidElem, p.length)
	case 1:
		return listPointer(0, byte1Elem, p.length)
	case 2:
		return listPointer(0, byte2Elem, p.length)
	case 4:
		return listPointer(0, byte4Elem, p.length)
	case 8:
		return listPointer(0, byte8Elem, p.length)
	default:
		panic(errListSize)
	}
}

// primitiveElem returns the address of element i's data, checking
// that the caller's expected element size matches p's actual shape.
func (p List) primitiveElem(i int, want ObjectSize) (Address, error) {
	if p.seg == nil || i < 0 || i >= int(p.length) {
		panic(errOutOfBounds)
	}
	mismatch := p.flags&isBitList != 0 ||
		(p.flags&isCompositeList == 0 && p.size != want) ||
		(p.flags&isCompositeList != 0 && (p.size.DataSize < want.DataSize || p.size.PointerCount < want.PointerCount))
	if mismatch {
		return 0, errElementSize
	}
	addr, ok := p.off.element(int32(i), p.size.totalSize())
	if !ok {
		return 0, errOverflow
	}
	return addr, nil
}

// Struct returns the i'th element as a struct (meaningful for
// composite lists). A bit list returns Struct{}; any other list
// returns a struct view of the element with the list's element size.
func (p List) Struct(i int) Struct {
	if p.seg == nil || i < 0 || i >= int(p.length) {
		panic(errOutOfBounds)
	}
	if p.flags&isBitList != 0 {
		return Struct{}
	}
	addr, ok := p.off.element(int32(i), p.size.totalSize())
	if !ok {
		return Struct{}
	}
	return Struct{seg: p.seg, off: addr, size: p.size, flags: isListMember, depthLimit: p.depthLimit}
}

// SetStruct copies s's fields into the i'th element.
func (p List) SetStruct(i int, s Struct) error {
	if p.flags&isBitList != 0 {
		return errBitListStruct
	}
	return copyStructFields(nil, p.Struct(i), s)
}

// A BitList is a list of booleans (spec §4.E: bit-indexed access).
type BitList struct{ List }

// NewBitList creates a new n-element bit list, preferring s.
func NewBitList(s *Segment, n int32) (BitList, error) {
	total := Size((n + 7) / 8).padToWord()
	seg, addr, err := alloc(s, total)
	if err != nil {
		return BitList{}, err
	}
	return BitList{List{seg: seg, off: addr, length: n, depthLimit: maxDepth, flags: isBitList}}, nil
}

// At reports the i'th bit.
func (l BitList) At(i int) bool {
	if l.seg == nil || i < 0 || i >= int(l.length) {
		panic(errOutOfBounds)
	}
	addr, ok := l.off.element(int32(i/8), 1)
	if !ok {
		return false
	}
	return l.seg.readUint8(addr)&(1<<(uint(i)%8)) != 0
}

// Set sets the i'th bit.
func (l BitList) Set(i int, v bool) {
	if l.seg == nil || i < 0 || i >= int(l.length) {
		panic(errOutOfBounds)
	}
	addr, ok := l.off.element(int32(i/8), 1)
	if !ok {
		return
	}
	b := l.seg.readUint8(addr)
	if v {
		b |= 1 << (uint(i) % 8)
	} else {
		b &^= 1 << (uint(i) % 8)
	}
	l.seg.writeUint8(addr, b)
}

// A PointerList is a list whose elements are themselves pointers.
type PointerList struct{ List }

// NewPointerList creates a new n-element pointer list, preferring s.
func NewPointerList(s *Segment, n int32) (PointerList, error) {
	l, err := newPrimitiveList(s, wordSize, n)
	if err != nil {
		return PointerList{}, err
	}
	l.size = ObjectSize{PointerCount: 1}
	return PointerList{l}, nil
}

// At returns the i'th element.
func (l PointerList) At(i int) (Ptr, error) {
	if l.seg == nil || i < 0 || i >= int(l.length) {
		panic(errOutOfBounds)
	}
	addr, ok := l.off.element(int32(i), wordSize)
	if !ok {
		return Ptr{}, errOverflow
	}
	if l.depthLimit == 0 {
		return Ptr{}, errDepthLimit
	}
	return l.seg.readPtr(addr, l.depthLimit)
}

// Set deep-copies v (if necessary) into the list's message and stores
// it in the i'th element.
func (l PointerList) Set(i int, v Ptr) error {
	addr, ok := l.off.element(int32(i), wordSize)
	if !ok {
		return errOverflow
	}
	resolved, err := resolvePointerForWrite(nil, l.seg, v)
	if err != nil {
		return err
	}
	return l.seg.writePtr(addr, resolved)
}

// A TextList is a list of NUL-terminated byte strings.
type TextList struct{ List }

// NewTextList creates a new n-element text list, preferring s.
func NewTextList(s *Segment, n int32) (TextList, error) {
	pl, err := NewPointerList(s, n)
	return TextList{pl.List}, err
}

func (l TextList) At(i int) (string, error) {
	p, err := PointerList{l.List}.At(i)
	if err != nil {
		return "", err
	}
	return ToText(p), nil
}

// Set stores v as the i'th element, NUL-terminated.
func (l TextList) Set(i int, v string) error {
	t, err := NewText(l.seg, v)
	if err != nil {
		return err
	}
	return PointerList{l.List}.Set(i, t.List.ToPtr())
}

func (l TextList) String() string {
	if l.seg == nil {
		return "nil"
	}
	out := "["
	for i := 0; i < l.Len(); i++ {
		if i > 0 {
			out += ", "
		}
		s, _ := l.At(i)
		out += strconv.Quote(s)
	}
	return out + "]"
}

// A DataList is a list of byte blobs.
type DataList struct{ List }

// NewDataList creates a new n-element data list, preferring s.
func NewDataList(s *Segment, n int32) (DataList, error) {
	pl, err := NewPointerList(s, n)
	return DataList{pl.List}, err
}

func (l DataList) At(i int) ([]byte, error) {
	p, err := PointerList{l.List}.At(i)
	if err != nil {
		return nil, err
	}
	return ToData(p), nil
}

func (l DataList) Set(i int, v []byte) error {
	d, err := NewData(l.seg, v)
	if err != nil {
		return err
	}
	return PointerList{l.List}.Set(i, d.List.ToPtr())
}

// A VoidList is a list whose elements carry no data.
type VoidList struct{ List }

// NewVoidList creates a new n-element void list.
func NewVoidList(s *Segment, n int32) VoidList {
	return VoidList{List{seg: s, length: n, depthLimit: maxDepth}}
}

// UInt8List and friends: fixed-width numeric element lists.

type UInt8List struct{ List }

func NewUInt8List(s *Segment, n int32) (UInt8List, error) {
	l, err := newPrimitiveList(s, 1, n)
	return UInt8List{l}, err
}

// NewText allocates a NUL-terminated copy of v.
func NewText(s *Segment, v string) (UInt8List, error) {
	return NewTextFromBytes(s, []byte(v))
}

// NewTextFromBytes allocates a NUL-terminated copy of v. The returned
// list's Len includes the NUL terminator; ToText strips it.
func NewTextFromBytes(s *Segment, v []byte) (UInt8List, error) {
	l, err := newPrimitiveList(s, 1, int32(len(v))+1)
	if err != nil {
		return UInt8List{}, err
	}
	copy(l.seg.data[l.off:], v)
	return UInt8List{l}, nil
}

// NewData allocates a copy of v as an unterminated byte list.
func NewData(s *Segment, v []byte) (UInt8List, error) {
	l, err := newPrimitiveList(s, 1, int32(len(v)))
	if err != nil {
		return UInt8List{}, err
	}
	copy(l.seg.data[l.off:], v)
	return UInt8List{l}, nil
}

func isByteList(p Ptr) bool {
	return p.flags.kind() == listPtrFlag && p.size.PointerCount == 0 && p.size.DataSize == 1 && p.flags&(isCompositeList|isBitList) == 0
}

// ToText decodes p as text, stripping its NUL terminator. Returns ""
// for anything that isn't a 1-byte-element list (spec: getp returns
// null/default on malformed input, never panics).
func ToText(p Ptr) string {
	if !isByteList(p) || p.length == 0 {
		return ""
	}
	b := p.seg.data[p.off : p.off+Address(p.length)-1]
	return string(b)
}

// ToData decodes p as a raw byte blob.
func ToData(p Ptr) []byte {
	if !isByteList(p) {
		return nil
	}
	return p.seg.data[p.off : p.off+Address(p.length)]
}

func (l UInt8List) At(i int) uint8 {
	addr, err := l.primitiveElem(i, ObjectSize{DataSize: 1})
	if err != nil {
		return 0
	}
	return l.seg.readUint8(addr)
}

func (l UInt8List) Set(i int, v uint8) {
	addr, err := l.primitiveElem(i, ObjectSize{DataSize: 1})
	if err != nil {
		return
	}
	l.seg.writeUint8(addr, v)
}

type Int8List struct{ List }

func NewInt8List(s *Segment, n int32) (Int8List, error) {
	l, err := newPrimitiveList(s, 1, n)
	return Int8List{l}, err
}
func (l Int8List) At(i int) int8    { return int8(UInt8List(l).At(i)) }
func (l Int8List) Set(i int, v int8) { UInt8List(l).Set(i, uint8(v)) }

type UInt16List struct{ List }

func NewUInt16List(s *Segment, n int32) (UInt16List, error) {
	l, err := newPrimitiveList(s, 2, n)
	return UInt16List{l}, err
}
func (l UInt16List) At(i int) uint16 {
	addr, err := l.primitiveElem(i, ObjectSize{DataSize: 2})
	if err != nil {
		return 0
	}
	return l.seg.readUint16(addr)
}
func (l UInt16List) Set(i int, v uint16) {
	addr, err := l.primitiveElem(i, ObjectSize{DataSize: 2})
	if err != nil {
		return
	}
	l.seg.writeUint16(addr, v)
}

type Int16List struct{ List }

func NewInt16List(s *Segment, n int32) (Int16List, error) {
	l, err := newPrimitiveList(s, 2, n)
	return Int16List{l}, err
}
func (l Int16List) At(i int) int16    { return int16(UInt16List(l).At(i)) }
func (l Int16List) Set(i int, v int16) { UInt16List(l).Set(i, uint16(v)) }

type UInt32List struct{ List }

func NewUInt32List(s *Segment, n int32) (UInt32List, error) {
	l, err := newPrimitiveList(s, 4, n)
	return UInt32List{l}, err
}
func (l UInt32List) At(i int) uint32 {
	addr, err := l.primitiveElem(i, ObjectSize{DataSize: 4})
	if err != nil {
		return 0
	}
	return l.seg.readUint32(addr)
}
func (l UInt32List) Set(i int, v uint32) {
	addr, err := l.primitiveElem(i, ObjectSize{DataSize: 4})
	if err != nil {
		return
	}
	l.seg.writeUint32(addr, v)
}

type Int32List struct{ List }

func NewInt32List(s *Segment, n int32) (Int32List, error) {
	l, err := newPrimitiveList(s, 4, n)
	return Int32List{l}, err
}
func (l Int32List) At(i int) int32    { return int32(UInt32List(l).At(i)) }
func (l Int32List) Set(i int, v int32) { UInt32List(l).Set(i, uint32(v)) }

type UInt64List struct{ List }

func NewUInt64List(s *Segment, n int32) (UInt64List, error) {
	l, err := newPrimitiveList(s, 8, n)
	return UInt64List{l}, err
}
func (l UInt64List) At(i int) uint64 {
	addr, err := l.primitiveElem(i, ObjectSize{DataSize: 8})
	if err != nil {
		return 0
	}
	return l.seg.readUint64(addr)
}
func (l UInt64List) Set(i int, v uint64) {
	addr, err := l.primitiveElem(i, ObjectSize{DataSize: 8})
	if err != nil {
		return
	}
	l.seg.writeUint64(addr, v)
}

type Int64List struct{ List }

func NewInt64List(s *Segment, n int32) (Int64List, error) {
	l, err := newPrimitiveList(s, 8, n)
	return Int64List{l}, err
}
func (l Int64List) At(i int) int64    { return int64(UInt64List(l).At(i)) }
func (l Int64List) Set(i int, v int64) { UInt64List(l).Set(i, uint64(v)) }

// bulk copy helpers (spec §4.E: getv*/setv* bulk variants). off and n
// are element indices; the number of elements actually read/written
// is bounded by the list's length (saturating, never erroring).

// GetUint8s copies up to len(dst) elements starting at off into dst,
// returning the count copied.
func (l UInt8List) GetUint8s(off int, dst []uint8) int {
	n := clampCount(off, l.Len(), len(dst))
	for i := 0; i < n; i++ {
		dst[i] = l.At(off + i)
	}
	return n
}

// SetUint8s writes up to len(src) elements starting at off from src,
// returning the count written.
func (l UInt8List) SetUint8s(off int, src []uint8) int {
	n := clampCount(off, l.Len(), len(src))
	for i := 0; i < n; i++ {
		l.Set(off+i, src[i])
	}
	return n
}

// GetUint32s copies up to len(dst) elements starting at off into dst,
// returning the count copied (spec §4.E bulk variants).
func (l UInt32List) GetUint32s(off int, dst []uint32) int {
	n := clampCount(off, l.Len(), len(dst))
	for i := 0; i < n; i++ {
		dst[i] = l.At(off + i)
	}
	return n
}

// SetUint32s writes up to len(src) elements starting at off from src,
// returning the count written.
func (l UInt32List) SetUint32s(off int, src []uint32) int {
	n := clampCount(off, l.Len(), len(src))
	for i := 0; i < n; i++ {
		l.Set(off+i, src[i])
	}
	return n
}

// GetUint64s and SetUint64s are the 64-bit analogs of GetUint32s/SetUint32s.
func (l UInt64List) GetUint64s(off int, dst []uint64) int {
	n := clampCount(off, l.Len(), len(dst))
	for i := 0; i < n; i++ {
		dst[i] = l.At(off + i)
	}
	return n
}

func (l UInt64List) SetUint64s(off int, src []uint64) int {
	n := clampCount(off, l.Len(), len(src))
	for i := 0; i < n; i++ {
		l.Set(off+i, src[i])
	}
	return n
}

// GetUint16s and SetUint16s are the 16-bit analogs of GetUint32s/SetUint32s.
func (l UInt16List) GetUint16s(off int, dst []uint16) int {
	n := clampCount(off, l.Len(), len(dst))
	for i := 0; i < n; i++ {
		dst[i] = l.At(off + i)
	}
	return n
}

func (l UInt16List) SetUint16s(off int, src []uint16) int {
	n := clampCount(off, l.Len(), len(src))
	for i := 0; i < n; i++ {
		l.Set(off+i, src[i])
	}
	return n
}

// GetBits copies up to len(dst) packed bytes of bit-list storage,
// starting at bit offset off, into dst. off must be byte-aligned
// (spec §4.E: the bulk bit variant moves whole bytes, not individual
// bits); a misaligned off copies nothing.
func (l BitList) GetBits(off int, dst []byte) int {
	if off%8 != 0 {
		return 0
	}
	byteLen := (l.Len() + 7) / 8
	n := clampCount(off/8, byteLen, len(dst))
	for i := 0; i < n; i++ {
		addr, ok := l.off.element(int32(off/8+i), 1)
		if !ok {
			return i
		}
		dst[i] = l.seg.readUint8(addr)
	}
	return n
}

// SetBits writes up to len(src) packed bytes of bit-list storage,
// starting at bit offset off. off must be byte-aligned.
func (l BitList) SetBits(off int, src []byte) int {
	if off%8 != 0 {
		return 0
	}
	byteLen := (l.Len() + 7) / 8
	n := clampCount(off/8, byteLen, len(src))
	for i := 0; i < n; i++ {
		addr, ok := l.off.element(int32(off/8+i), 1)
		if !ok {
			return i
		}
		l.seg.writeUint8(addr, src[i])
	}
	return n
}

func clampCount(off, length, want int) int {
	if off < 0 || off >= length {
		return 0
	}
	if avail := length - off; want > avail {
		return avail
	}
	return want
}
