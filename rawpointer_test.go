package capnp

import "testing"

func TestStructPointerRoundTrip(t *testing.T) {
	sz := ObjectSize{DataSize: 16, PointerCount: 3}
	p := structPointer(5, sz)
	if p.kind() != structKind {
		t.Fatalf("kind() = %v; want structKind", p.kind())
	}
	if off := p.offset(); off != 5 {
		t.Errorf("offset() = %d; want 5", off)
	}
	got := p.structSize()
	if got != sz {
		t.Errorf("structSize() = %+v; want %+v", got, sz)
	}
}

func TestListPointerRoundTrip(t *testing.T) {
	tests := []struct {
		enc elemEncoding
		n   int32
	}{
		{voidElem, 0},
		{bitElem, 17},
		{byte1Elem, 3},
		{byte8Elem, 100},
		{ptrElem, 1},
		{compositeElem, 9},
	}
	for _, test := range tests {
		p := listPointer(-3, test.enc, test.n)
		if p.kind() != listKind {
			t.Fatalf("listPointer(...).kind() = %v; want listKind", p.kind())
		}
		if got := p.offset(); got != -3 {
			t.Errorf("offset() = %d; want -3", got)
		}
		if got := p.listEncoding(); got != test.enc {
			t.Errorf("listEncoding() = %v; want %v", got, test.enc)
		}
		if got := p.listCount(); got != test.n {
			t.Errorf("listCount() = %d; want %d", got, test.n)
		}
	}
}

func TestFarPointerRoundTrip(t *testing.T) {
	p := farPointer(7, 0x1000)
	if p.kind() != farKind {
		t.Fatalf("kind() = %v; want farKind", p.kind())
	}
	if got := p.farSegment(); got != 7 {
		t.Errorf("farSegment() = %d; want 7", got)
	}
	if got := p.farAddress(); got != 0x1000 {
		t.Errorf("farAddress() = %d; want 0x1000", got)
	}
}

func TestDoubleFarPointerKind(t *testing.T) {
	p := doubleFarPointer(2, 0x40)
	if p.kind() != doubleFarKind {
		t.Fatalf("kind() = %v; want doubleFarKind", p.kind())
	}
}

func TestWordOffsetResolve(t *testing.T) {
	tests := []struct {
		off       wordOffset
		afterPtr  Address
		want      Address
	}{
		{0, 16, 16},
		{1, 16, 24},
		{-1, 16, 8},
	}
	for _, test := range tests {
		got, ok := test.off.resolve(test.afterPtr)
		if !ok || got != test.want {
			t.Errorf("wordOffset(%d).resolve(%d) = (%d, %v); want (%d, true)", test.off, test.afterPtr, got, ok, test.want)
		}
	}
}

func TestOffsetToRoundTrips(t *testing.T) {
	ptrAddr := Address(16)
	target := Address(40)
	off := offsetTo(ptrAddr, target)
	resolved, ok := off.resolve(ptrAddr + Address(wordSize))
	if !ok || resolved != target {
		t.Errorf("offsetTo(%d, %d).resolve(...) = (%d, %v); want (%d, true)", ptrAddr, target, resolved, ok, target)
	}
}
