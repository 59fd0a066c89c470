package capnp

import "testing"

// TestMalformedCompositeListPointerReturnsError guards spec §4.C rule 3
// ("violations yield a null reference, never an out-of-bounds read"): a
// composite-list pointer whose resolved address lands exactly at the
// end of the segment (no room left for the tag word it claims) must
// fail with an error, not panic while reading that tag word.
func TestMalformedCompositeListPointerReturnsError(t *testing.T) {
	_, seg, err := NewMessage(SingleSegment(nil))
	if err != nil {
		t.Fatal(err)
	}
	// seg.data is the single reserved root-pointer word (8 bytes); a
	// near composite-list pointer with offset 0 resolves to address 8,
	// i.e. one byte past the end of the segment's current data.
	raw := listPointer(0, compositeElem, 0)
	seg.writeRawPointer(0, raw)

	if _, err := seg.readPtr(0, maxDepth); err == nil {
		t.Error("readPtr on a malformed composite-list pointer should return an error, not succeed or panic")
	}
}
