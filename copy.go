package capnp

// copyTree implements the deep-copy bookkeeping spec §4.F asks for: a
// structure keyed by source object address that is populated as soon
// as a destination object is allocated, before its children are
// copied, so that a second encounter with the same source address
// during the same setp returns the already-built destination object
// instead of re-cloning it or recursing forever on a cycle.
//
// The reference implementation keys this off a red-black tree rooted
// at a reserved LOCAL segment, since in C an allocation needs a home
// even when it's pure bookkeeping. A Go map needs no such home; it is
// reclaimed by the garbage collector the moment the setp call
// returns, so the LOCAL segment id exists only to reserve the wire
// namespace (segment.go), not to back this map.
type copyTree struct {
	seen map[copyKey]Ptr
}

type copyKey struct {
	seg *Segment
	off Address
}

func newCopyTree() *copyTree {
	return &copyTree{seen: make(map[copyKey]Ptr)}
}

// resolvePointerForWrite prepares src for storage into a pointer slot
// that lives in dstSeg's message. If src already lives there, it is
// returned unchanged (spec §4.E rule 1: same-message setp is a cheap
// reference copy). Otherwise it is deep-copied via tree, allocating a
// tree on demand if tree is nil, so that every pointer in src's
// subgraph is duplicated into the destination message exactly once
// (spec §8 invariants 5-7).
func resolvePointerForWrite(tree *copyTree, dstSeg *Segment, src Ptr) (Ptr, error) {
	if !src.IsValid() {
		return Ptr{}, nil
	}
	if src.seg.msg == dstSeg.msg {
		return src, nil
	}
	if tree == nil {
		tree = newCopyTree()
	}
	return tree.copy(dstSeg, src)
}

// copy returns the destination-message equivalent of src, allocating
// and recording it before recursing into its children so a cycle or a
// shared sub-graph resolves to a single destination object (spec §8
// invariants 6-7).
func (t *copyTree) copy(dstSeg *Segment, src Ptr) (Ptr, error) {
	key := copyKey{seg: src.seg, off: src.off}
	if dst, ok := t.seen[key]; ok {
		return dst, nil
	}

	switch src.Kind() {
	case StructKind:
		srcStruct := src.Struct()
		dstStruct, err := NewStruct(dstSeg, srcStruct.size)
		if err != nil {
			return Ptr{}, err
		}
		dst := dstStruct.ToPtr()
		t.seen[key] = dst
		if err := copyStructFields(t, dstStruct, srcStruct); err != nil {
			return Ptr{}, err
		}
		return dst, nil

	case ListKind:
		srcList := src.List()
		dstList, err := newEquivalentList(dstSeg, srcList)
		if err != nil {
			return Ptr{}, err
		}
		dst := dstList.ToPtr()
		t.seen[key] = dst

		copy(dstList.seg.data[dstList.rawBase():], srcList.seg.data[srcList.rawBase():srcList.rawBase()+Address(srcList.allocSize())])

		switch {
		case srcList.flags&isCompositeList != 0:
			for i := 0; i < srcList.Len(); i++ {
				if err := copyStructFields(t, dstList.Struct(i), srcList.Struct(i)); err != nil {
					return Ptr{}, err
				}
			}
		case srcList.flags&isBitList != 0:
			// Bit lists carry no pointers; the raw byte copy above suffices.
		case srcList.size.PointerCount == 1 && srcList.size.DataSize == 0:
			srcPL := PointerList{srcList}
			dstPL := PointerList{dstList}
			for i := 0; i < srcPL.Len(); i++ {
				child, err := srcPL.At(i)
				if err != nil {
					return Ptr{}, err
				}
				resolved, err := resolvePointerForWrite(t, dstSeg, child)
				if err != nil {
					return Ptr{}, err
				}
				if err := dstPL.Set(i, resolved); err != nil {
					return Ptr{}, err
				}
			}
		}
		return dst, nil

	default:
		return Ptr{}, nil
	}
}

// rawBase is the address of a list's payload, including its composite
// tag word if it has one, for bulk data-section copying.
func (p List) rawBase() Address {
	if p.flags&isCompositeList != 0 {
		return p.off - Address(wordSize)
	}
	return p.off
}
