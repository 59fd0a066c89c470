package capnp

import (
	"math"
	"testing"
)

func newTestStruct(t *testing.T, dataSize Size, ptrs uint16) Struct {
	t.Helper()
	_, seg, err := NewMessage(SingleSegment(nil))
	if err != nil {
		t.Fatal(err)
	}
	st, err := NewStruct(seg, ObjectSize{DataSize: dataSize, PointerCount: ptrs})
	if err != nil {
		t.Fatal(err)
	}
	return st
}

// TestUint64RoundTrip covers invariant 2 (endianness): a written value
// reads back unchanged and is stored little-endian.
func TestUint64RoundTrip(t *testing.T) {
	st := newTestStruct(t, 8, 0)
	const want = 0x0123456789ABCDEF
	if err := st.SetUint64(0, want); err != nil {
		t.Fatal(err)
	}
	if got := st.Uint64(0); got != want {
		t.Errorf("Uint64(0) = %#x; want %#x", got, want)
	}
	raw := st.seg.slice(st.off, 8)
	wantBytes := [8]byte{0xEF, 0xCD, 0xAB, 0x89, 0x67, 0x45, 0x23, 0x01}
	for i, b := range wantBytes {
		if raw[i] != b {
			t.Errorf("byte %d = %#x; want %#x", i, raw[i], b)
		}
	}
}

// TestFloat64DefaultXOR covers invariant 3 and the resolved Open
// Question: a field equal to its default reads back as that default
// even though the underlying bytes are zero, and writing the default
// stores zeros.
func TestFloat64DefaultXOR(t *testing.T) {
	st := newTestStruct(t, 8, 0)
	const def = 3.25
	if err := st.SetFloat64(0, def, def); err != nil {
		t.Fatal(err)
	}
	if got := st.Uint64(0); got != 0 {
		t.Errorf("storing the default should encode as zero, got %#x", got)
	}
	if got := st.Float64(0, def); got != def {
		t.Errorf("Float64(0, %v) = %v; want %v", def, got, def)
	}

	const other = 7.5
	if err := st.SetFloat64(0, other, def); err != nil {
		t.Fatal(err)
	}
	if got := st.Float64(0, def); got != other {
		t.Errorf("Float64(0, %v) = %v; want %v", def, got, other)
	}
	if math.Float64bits(other) == st.Uint64(0) {
		t.Error("non-default value should not be stored verbatim; it must be XORed against def")
	}
}

// TestBoundsSaturation covers invariant 4 and scenario S6: reads past
// the data section return zero, writes past it return an error, and
// the struct is left unchanged.
func TestBoundsSaturation(t *testing.T) {
	st := newTestStruct(t, 8, 0)
	if got := st.Uint64(8); got != 0 {
		t.Errorf("Uint64(8) = %d; want 0", got)
	}
	if got := st.Uint32(12); got != 0 {
		t.Errorf("Uint32(12) = %d; want 0", got)
	}
	if err := st.SetUint8(8, 1); err == nil {
		t.Error("SetUint8(8, 1) should fail; offset is outside the 8-byte data section")
	}
}

func TestBitAccessors(t *testing.T) {
	st := newTestStruct(t, 8, 0)
	if st.Bit(3) {
		t.Error("unset bit should read false")
	}
	if err := st.SetBit(3, true); err != nil {
		t.Fatal(err)
	}
	if !st.Bit(3) {
		t.Error("bit 3 should read true after SetBit(3, true)")
	}
	if st.Bit(2) || st.Bit(4) {
		t.Error("SetBit must not disturb neighboring bits")
	}
}

func TestSetPtrRejectsListMember(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewCompositeList(seg, ObjectSize{DataSize: 8, PointerCount: 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	elem := l.Struct(0)
	other, err := NewStruct(seg, ObjectSize{DataSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := elem.SetPtr(0, other.ToPtr()); err != errListMemberBackPtr {
		t.Errorf("SetPtr on a composite list element = %v; want errListMemberBackPtr", err)
	}
}
