package packed

import (
	"bytes"
	"io"
	"testing"
)

// TestPackScenario covers spec scenario S3: one zero word followed by
// a fully-dense word packs to a zero-run tag then a dense-run tag.
func TestPackScenario(t *testing.T) {
	src := append(make([]byte, 8), []byte{1, 2, 3, 4, 5, 6, 7, 8}...)
	got, err := Pack(nil, src)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x00, 0x00, // zero-run: tag 0, 0 additional zero words (1 total)
		0xFF,                          // dense-word tag: all 8 bytes nonzero
		1, 2, 3, 4, 5, 6, 7, 8,         // the word itself
		0x00, // dense-run: 0 additional dense words
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Pack(...) =\n% 02x\nwant\n% 02x", got, want)
	}
}

func TestUnpackInverseOfPack(t *testing.T) {
	src := append(make([]byte, 8), []byte{1, 2, 3, 4, 5, 6, 7, 8}...)
	packed, err := Pack(nil, src)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unpack(nil, packed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, src) {
		t.Errorf("Unpack(Pack(src)) =\n% 02x\nwant\n% 02x", got, src)
	}
}

// TestRoundTripAndBound covers invariant 1: for every whole-word byte
// sequence, inflate(deflate(x)) == x, and the packed form is no more
// than |x| + ceil(|x|/64) + 2 bytes.
func TestRoundTripAndBound(t *testing.T) {
	tests := [][]byte{
		make([]byte, 0),
		make([]byte, 8),
		bytes.Repeat([]byte{0xAB}, 8*10),
		{0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0},
		append(bytes.Repeat([]byte{0}, 8*300), bytes.Repeat([]byte{7}, 8*300)...),
	}
	for i, src := range tests {
		packedBytes, err := Pack(nil, src)
		if err != nil {
			t.Fatalf("case %d: Pack: %v", i, err)
		}
		maxLen := len(src) + (len(src)+63)/64 + 2
		if len(packedBytes) > maxLen {
			t.Errorf("case %d: len(packed) = %d; want <= %d", i, len(packedBytes), maxLen)
		}
		unpacked, err := Unpack(nil, packedBytes)
		if err != nil {
			t.Fatalf("case %d: Unpack: %v", i, err)
		}
		if !bytes.Equal(unpacked, src) {
			t.Errorf("case %d: round-trip mismatch", i)
		}
	}
}

func TestReaderMatchesUnpack(t *testing.T) {
	src := append(bytes.Repeat([]byte{0}, 24), []byte{9, 0, 0, 0, 0, 0, 0, 0}...)
	packedBytes, err := Pack(nil, src)
	if err != nil {
		t.Fatal(err)
	}
	r := NewReader(bytes.NewReader(packedBytes))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, src) {
		t.Errorf("Reader output =\n% 02x\nwant\n% 02x", got, src)
	}
}

func TestWriterPacksWholeWords(t *testing.T) {
	src := append(make([]byte, 8), []byte{1, 2, 3, 4, 5, 6, 7, 8}...)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	want, err := Pack(nil, src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Writer output =\n% 02x\nwant\n% 02x", buf.Bytes(), want)
	}
}

func TestUnpackTruncatedDenseWord(t *testing.T) {
	if _, err := Unpack(nil, []byte{0xff, 1, 2, 3}); err != io.ErrUnexpectedEOF {
		t.Errorf("truncated dense word: err = %v; want io.ErrUnexpectedEOF", err)
	}
}
