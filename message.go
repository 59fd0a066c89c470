package capnp

import (
	"encoding/binary"
	"io"

	"github.com/cloudflare/go-capnp-core/internal/packed"
)

// maxStreamSegments bounds how many segments a single Decode call will
// honor, guarding against a hostile segment-count word that would
// otherwise drive an enormous allocation before a single byte of
// payload is read (spec §4.I/§4.K).
const maxStreamSegments = 1 << 16

// Decode reads one unpacked Cap'n Proto message from r (spec §6: the
// stream framing is a little-endian segment count word, one 32-bit
// word-length per segment padded to keep the header itself a multiple
// of 8 bytes, and then the segments themselves back to back).
func Decode(r io.Reader) (*Message, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, wrapf(err, "capnp: read stream header")
	}
	count := int(binary.LittleEndian.Uint32(hdr[:])) + 1
	if count <= 0 || count > maxStreamSegments {
		return nil, wrapf(errObjectSize, "capnp: stream declares %d segments", count)
	}

	lengths := make([]uint32, count)
	lenBuf := make([]byte, count*4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, wrapf(err, "capnp: read segment lengths")
	}
	for i := range lengths {
		lengths[i] = binary.LittleEndian.Uint32(lenBuf[i*4:])
	}
	if count%2 == 0 {
		// Header padding keeps the segment table a whole number of words.
		var pad [4]byte
		if _, err := io.ReadFull(r, pad[:]); err != nil {
			return nil, wrapf(err, "capnp: read header padding")
		}
	}

	segs := make([][]byte, count)
	for i, words := range lengths {
		n := int64(words) * int64(wordSize)
		if n < 0 || n > int64(maxSize) {
			return nil, errOverflow
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, wrapf(err, "capnp: read segment %d", i)
		}
		segs[i] = buf
	}

	msg := &Message{Arena: readOnlyArena{MultiSegment(segs)}}
	for i, data := range segs {
		msg.registerSegment(SegmentID(i), data)
	}
	return msg, nil
}

// Encode writes msg to w in the unpacked stream format (spec §6).
func Encode(w io.Writer, msg *Message) error {
	n := msg.NumSegments()
	if n == 0 {
		return wrapf(errObjectSize, "capnp: message has no segments")
	}

	hdr := make([]byte, 4+n*4)
	binary.LittleEndian.PutUint32(hdr, uint32(n-1))
	for i := int64(0); i < n; i++ {
		seg, err := msg.Segment(SegmentID(i))
		if err != nil {
			return err
		}
		if len(seg.data)%int(wordSize) != 0 {
			return wrapf(errObjectSize, "capnp: segment %d is not word-aligned", i)
		}
		binary.LittleEndian.PutUint32(hdr[4+i*4:], uint32(len(seg.data)/int(wordSize)))
	}
	if _, err := w.Write(hdr); err != nil {
		return wrapf(err, "capnp: write stream header")
	}
	if n%2 == 0 {
		if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
			return wrapf(err, "capnp: write header padding")
		}
	}
	for i := int64(0); i < n; i++ {
		seg, err := msg.Segment(SegmentID(i))
		if err != nil {
			return err
		}
		if _, err := w.Write(seg.data); err != nil {
			return wrapf(err, "capnp: write segment %d", i)
		}
	}
	return nil
}

// DecodePacked reads a packed-stream-encoded message from r (spec
// §4.G/§6): the packed codec is applied first, then the result is
// parsed as an ordinary unpacked stream.
func DecodePacked(r io.Reader) (*Message, error) {
	return Decode(packed.NewReader(r))
}

// EncodePacked writes msg to w using the packed stream encoding.
func EncodePacked(w io.Writer, msg *Message) error {
	pw := packed.NewWriter(w)
	if err := Encode(pw, msg); err != nil {
		return err
	}
	return pw.Close()
}
