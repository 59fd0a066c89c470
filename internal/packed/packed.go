// Package packed implements Cap'n Proto's packed stream compression
// (spec §4.G): runs of zero words collapse to a tag byte plus a
// count, and runs of "dense" words (every byte nonzero) collapse to a
// tag byte, a count, and the raw words with no further filtering.
// Everything else is stored as a tag byte identifying which of the
// word's 8 bytes are nonzero, followed by just those bytes.
package packed

import (
	"bufio"
	"errors"
	"io"
)

const wordLen = 8

// ErrMisaligned is returned by Pack and Writer.Flush when the bytes to
// pack are not a whole number of words, and by Unpack when a packed
// stream ends where a run-count byte is due (spec's CAPN_MISALIGNED
// status).
var ErrMisaligned = errors.New("packed: stream not a whole number of words")

// Pack appends the packed encoding of src to dst and returns the
// extended slice. len(src) must be a multiple of 8.
func Pack(dst, src []byte) ([]byte, error) {
	if len(src)%wordLen != 0 {
		return dst, ErrMisaligned
	}
	for i := 0; i < len(src); {
		word := src[i : i+wordLen]
		i += wordLen

		if isZero(word) {
			dst = append(dst, 0)
			n := byte(0)
			for n < 255 && i+wordLen <= len(src) && isZero(src[i:i+wordLen]) {
				n++
				i += wordLen
			}
			dst = append(dst, n)
			continue
		}

		tag := byte(0)
		for b := 0; b < wordLen; b++ {
			if word[b] != 0 {
				tag |= 1 << uint(b)
			}
		}
		dst = append(dst, tag)
		for b := 0; b < wordLen; b++ {
			if word[b] != 0 {
				dst = append(dst, word[b])
			}
		}

		if tag == 0xff {
			// Dense-run optimization: count full words immediately
			// following that are themselves all-nonzero, and copy them
			// verbatim instead of re-deriving a tag byte for each.
			runStart := i
			n := byte(0)
			for n < 255 && i+wordLen <= len(src) && isDense(src[i:i+wordLen]) {
				n++
				i += wordLen
			}
			dst = append(dst, n)
			dst = append(dst, src[runStart:i]...)
		}
	}
	return dst, nil
}

func isZero(word []byte) bool {
	for _, b := range word {
		if b != 0 {
			return false
		}
	}
	return true
}

func isDense(word []byte) bool {
	for _, b := range word {
		if b == 0 {
			return false
		}
	}
	return true
}

// Unpack appends the unpacked bytes of src to dst and returns the
// extended slice. It returns ErrMisaligned (CAPN_MISALIGNED) if src
// ends after a 0x00 or 0xFF tag where its run-count byte is due, and
// io.ErrUnexpectedEOF if a tag promises word bytes or raw-run words
// that src does not contain (CAPN_NEED_MORE in the streaming API
// below).
func Unpack(dst, src []byte) ([]byte, error) {
	for len(src) > 0 {
		tag := src[0]
		src = src[1:]

		if tag == 0 {
			if len(src) < 1 {
				return dst, ErrMisaligned
			}
			n := int(src[0])
			src = src[1:]
			for w := 0; w <= n; w++ {
				dst = append(dst, 0, 0, 0, 0, 0, 0, 0, 0)
			}
			continue
		}

		var word [wordLen]byte
		for b := 0; b < wordLen; b++ {
			if tag&(1<<uint(b)) != 0 {
				if len(src) < 1 {
					return dst, io.ErrUnexpectedEOF
				}
				word[b] = src[0]
				src = src[1:]
			}
		}
		dst = append(dst, word[:]...)

		if tag == 0xff {
			if len(src) < 1 {
				return dst, ErrMisaligned
			}
			n := int(src[0])
			src = src[1:]
			need := n * wordLen
			if len(src) < need {
				return dst, io.ErrUnexpectedEOF
			}
			dst = append(dst, src[:need]...)
			src = src[need:]
		}
	}
	return dst, nil
}

// A Reader inflates a packed stream as it is read, presenting the
// unpacked bytes to callers of Read (spec §4.G's "inflate" operation,
// adapted to Go's io.Reader rather than a push-based status code).
type Reader struct {
	r       *bufio.Reader
	pending []byte // unpacked bytes not yet returned to the caller
}

// NewReader wraps r, unpacking on demand.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (pr *Reader) Read(p []byte) (int, error) {
	for len(pr.pending) == 0 {
		if err := pr.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, pr.pending)
	pr.pending = pr.pending[n:]
	return n, nil
}

// fill unpacks one tag's worth of output into pr.pending.
func (pr *Reader) fill() error {
	tag, err := pr.r.ReadByte()
	if err != nil {
		return err
	}

	if tag == 0 {
		n, err := pr.r.ReadByte()
		if err != nil {
			return unexpected(err)
		}
		for w := 0; w <= int(n); w++ {
			pr.pending = append(pr.pending, 0, 0, 0, 0, 0, 0, 0, 0)
		}
		return nil
	}

	var word [wordLen]byte
	for b := 0; b < wordLen; b++ {
		if tag&(1<<uint(b)) != 0 {
			v, err := pr.r.ReadByte()
			if err != nil {
				return unexpected(err)
			}
			word[b] = v
		}
	}
	pr.pending = append(pr.pending, word[:]...)

	if tag == 0xff {
		n, err := pr.r.ReadByte()
		if err != nil {
			return unexpected(err)
		}
		raw := make([]byte, int(n)*wordLen)
		if _, err := io.ReadFull(pr.r, raw); err != nil {
			return unexpected(err)
		}
		pr.pending = append(pr.pending, raw...)
	}
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// A Writer packs bytes written to it and forwards the packed form to
// the underlying writer. Callers must write whole words and call
// Flush (or Close) when done; partial words are held back until a
// complete word is available (spec §4.G's "deflate", CAPN_NEED_MORE
// meaning "wait for more input" here becomes "buffer it").
type Writer struct {
	w    io.Writer
	pend []byte
}

// NewWriter wraps w, packing bytes written to the returned Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (pw *Writer) Write(p []byte) (int, error) {
	total := len(p)
	pw.pend = append(pw.pend, p...)
	whole := len(pw.pend) - len(pw.pend)%wordLen
	if whole == 0 {
		return total, nil
	}
	out, err := Pack(nil, pw.pend[:whole])
	if err != nil {
		return 0, err
	}
	if _, err := pw.w.Write(out); err != nil {
		return 0, err
	}
	pw.pend = append([]byte(nil), pw.pend[whole:]...)
	return total, nil
}

// Flush requires that everything written so far is word-aligned and
// forces it out; it errors if a partial word is still buffered.
func (pw *Writer) Flush() error {
	if len(pw.pend) != 0 {
		return ErrMisaligned
	}
	return nil
}

// Close flushes the writer.
func (pw *Writer) Close() error {
	return pw.Flush()
}
