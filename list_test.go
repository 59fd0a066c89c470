package capnp

import "testing"

func newTestSegment(t *testing.T) *Segment {
	t.Helper()
	_, seg, err := NewMessage(SingleSegment(nil))
	if err != nil {
		t.Fatal(err)
	}
	return seg
}

// TestCompositeListTagWord covers scenario S4: a 3-element list of a
// struct sized datasz=16,ptrs=1 must carry a tag word encoding the
// element count and per-element shape, and occupy 3*(2+1) words of
// payload.
func TestCompositeListTagWord(t *testing.T) {
	seg := newTestSegment(t)
	elemSize := ObjectSize{DataSize: 16, PointerCount: 1}
	l, err := NewCompositeList(seg, elemSize, 3)
	if err != nil {
		t.Fatal(err)
	}
	tagAddr := l.off - Address(wordSize)
	tag := seg.readRawPointer(tagAddr)
	if tag.kind() != structKind {
		t.Fatalf("tag word kind = %v; want structKind", tag.kind())
	}
	if got := int32(tag.offset()); got != 3 {
		t.Errorf("tag word element count = %d; want 3", got)
	}
	if got := tag.structSize(); got != elemSize {
		t.Errorf("tag word struct size = %+v; want %+v", got, elemSize)
	}
	wantPayload := Size(3 * (2 + 1) * int(wordSize))
	gotPayload, _ := elemSize.totalSize().times(3)
	if gotPayload != wantPayload {
		t.Errorf("payload size = %d bytes; want %d bytes", gotPayload, wantPayload)
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d; want 3", l.Len())
	}
}

// TestTextRoundTrip covers scenario S5.
func TestTextRoundTrip(t *testing.T) {
	seg := newTestSegment(t)
	txt, err := NewText(seg, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if got := txt.Len(); got != 3 {
		t.Errorf("NewText(\"hi\").Len() = %d; want 3 (2 bytes + NUL)", got)
	}
	if got := ToText(txt.List.ToPtr()); got != "hi" {
		t.Errorf("ToText(...) = %q; want %q", got, "hi")
	}
}

func TestDataRoundTrip(t *testing.T) {
	seg := newTestSegment(t)
	want := []byte{1, 2, 3, 4, 5}
	d, err := NewData(seg, want)
	if err != nil {
		t.Fatal(err)
	}
	got := ToData(d.List.ToPtr())
	if len(got) != len(want) {
		t.Fatalf("ToData(...) len = %d; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %d; want %d", i, got[i], want[i])
		}
	}
}

func TestBitListRoundTrip(t *testing.T) {
	seg := newTestSegment(t)
	bl, err := NewBitList(seg, 10)
	if err != nil {
		t.Fatal(err)
	}
	bl.Set(0, true)
	bl.Set(3, true)
	bl.Set(9, true)
	for i := 0; i < 10; i++ {
		want := i == 0 || i == 3 || i == 9
		if got := bl.At(i); got != want {
			t.Errorf("At(%d) = %v; want %v", i, got, want)
		}
	}
}

func TestPointerListDeepCopiesAcrossMessages(t *testing.T) {
	srcSeg := newTestSegment(t)
	srcLeaf, err := NewStruct(srcSeg, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := srcLeaf.SetUint64(0, 42); err != nil {
		t.Fatal(err)
	}

	dstSeg := newTestSegment(t)
	dstList, err := NewPointerList(dstSeg, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := dstList.Set(0, srcLeaf.ToPtr()); err != nil {
		t.Fatal(err)
	}

	got, err := dstList.At(0)
	if err != nil {
		t.Fatal(err)
	}
	if got.seg.msg != dstSeg.msg {
		t.Error("PointerList.Set must deep-copy a cross-message pointer, not alias the source segment")
	}
	if got.Struct().Uint64(0) != 42 {
		t.Errorf("copied struct field = %d; want 42", got.Struct().Uint64(0))
	}

	// Mutating the source after the copy must not affect the destination
	// (invariant 5: deep copy).
	if err := srcLeaf.SetUint64(0, 99); err != nil {
		t.Fatal(err)
	}
	if got.Struct().Uint64(0) != 42 {
		t.Error("destination struct changed after mutating the source post-copy")
	}
}

func TestUInt32ListBulkAccessors(t *testing.T) {
	seg := newTestSegment(t)
	l, err := NewUInt32List(seg, 5)
	if err != nil {
		t.Fatal(err)
	}
	src := []uint32{10, 20, 30, 40, 50}
	if n := l.SetUint32s(0, src); n != 5 {
		t.Fatalf("SetUint32s = %d; want 5", n)
	}
	dst := make([]uint32, 5)
	if n := l.GetUint32s(0, dst); n != 5 {
		t.Fatalf("GetUint32s = %d; want 5", n)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("element %d = %d; want %d", i, dst[i], src[i])
		}
	}
}
