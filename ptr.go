package capnp

// PtrKind is the navigable kind of a typed reference (spec §3: Ptr.type).
type PtrKind int

const (
	// NullKind is the kind of the zero Ptr, returned on errors and for
	// missing fields.
	NullKind PtrKind = iota
	StructKind
	ListKind
)

// ptrFlags packs the handle's kind plus the internal layout bits
// (is_list_member, has composite tag) mentioned in spec §3.
type ptrFlags uint8

const (
	structPtrFlag ptrFlags = 1 << iota
	listPtrFlag
	isListMember
	isCompositeList
	isBitList
)

func (f ptrFlags) kind() ptrFlags {
	return f & (structPtrFlag | listPtrFlag)
}

// Pointer is implemented by Struct and List: the two concrete shapes a
// Ptr can carry.
type Pointer interface {
	ToPtr() Ptr
}

// Ptr is the handle returned by navigation (spec §3). It is a
// transient view, never persisted itself — only the pointer word on
// the wire is durable.
type Ptr struct {
	seg   *Segment
	off   Address
	size  ObjectSize // struct: data+pointer section sizes. list: per-element size.
	length int32      // list element count; unused for structs.

	depthLimit uint
	flags      ptrFlags
}

// IsValid reports whether p refers to an object, as opposed to being
// the null reference.
func (p Ptr) IsValid() bool {
	return p.seg != nil
}

// Kind reports which of struct/list/null p is.
func (p Ptr) Kind() PtrKind {
	switch p.flags.kind() {
	case structPtrFlag:
		return StructKind
	case listPtrFlag:
		return ListKind
	default:
		return NullKind
	}
}

// Struct reinterprets p as a Struct without checking p's kind: a list
// Ptr yields a struct view of the same address, and the null Ptr yields
// an invalid Struct. Callers that don't already know p's kind should
// check Kind first.
func (p Ptr) Struct() Struct {
	return Struct{
		seg:        p.seg,
		off:        p.off,
		size:       p.size,
		depthLimit: p.depthLimit,
		flags:      p.flags &^ (structPtrFlag | listPtrFlag),
	}
}

// List reinterprets p as a List.
func (p Ptr) List() List {
	return List{
		seg:        p.seg,
		off:        p.off,
		size:       p.size,
		length:     p.length,
		depthLimit: p.depthLimit,
		flags:      p.flags &^ (structPtrFlag | listPtrFlag),
	}
}

// SamePtr reports whether p and q reference the identical object:
// same segment and same address. Two independently-copied but
// byte-equal objects are NOT SamePtr.
func SamePtr(p, q Ptr) bool {
	return p.seg == q.seg && p.off == q.off && p.flags.kind() == q.flags.kind()
}

// alloc allocates sz bytes, preferring s, falling back to the
// message's arena growth policy (spec §4.B).
func alloc(s *Segment, sz Size) (*Segment, Address, error) {
	sz = sz.padToWord()
	if hasCapacity(s.data, sz) {
		addr := Address(len(s.data))
		s.data = s.data[:len(s.data)+int(sz)]
		return s, addr, nil
	}
	return s.msg.allocate(sz, s)
}

// NewStruct creates a new struct object with the given size,
// preferring placement in s.
func NewStruct(s *Segment, sz ObjectSize) (Struct, error) {
	if !sz.isValid() {
		return Struct{}, errObjectSize
	}
	seg, addr, err := alloc(s, sz.totalSize())
	if err != nil {
		return Struct{}, err
	}
	return Struct{seg: seg, off: addr, size: sz, depthLimit: maxDepth}, nil
}

// NewRootStruct creates a new struct and returns it for use as message root.
// Callers must still call Message.SetRootPtr.
func NewRootStruct(s *Segment, sz ObjectSize) (Struct, error) {
	return NewStruct(s, sz)
}

// newEquivalentList allocates an empty list of the same shape as src
// (same element size/encoding, same length) in dstSeg, for use by the
// deep-copy builder in copy.go.
func newEquivalentList(dstSeg *Segment, src List) (List, error) {
	switch {
	case src.flags&isCompositeList != 0:
		return NewCompositeList(dstSeg, src.size, src.length)
	case src.flags&isBitList != 0:
		bl, err := NewBitList(dstSeg, src.length)
		return bl.List, err
	case src.size.PointerCount == 1 && src.size.DataSize == 0:
		pl, err := NewPointerList(dstSeg, src.length)
		return pl.List, err
	default:
		return newPrimitiveList(dstSeg, src.size.DataSize, src.length)
	}
}
