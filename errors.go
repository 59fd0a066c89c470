package capnp

import "github.com/pkg/errors"

// Error taxonomy (spec §7). Read accessors never return these: they
// saturate to the zero value. Mutating calls and the navigation layer
// surface them so a caller can tell "ran out of room" from "bad wire
// data" while debugging, even though both collapse to a single status
// at the abstract API boundary.
var (
	// Bounds errors: an offset plus a size exceeded a section or
	// segment.
	errPointerAddress = errors.New("capnp: pointer address out of bounds")
	errFieldBounds    = errors.New("capnp: field offset outside struct data section")
	errOutOfBounds    = errors.New("capnp: list index out of bounds")
	errObjectSize     = errors.New("capnp: invalid struct/list size")
	errListSize       = errors.New("capnp: list has no single-byte/ptr encoding")
	errElementSize    = errors.New("capnp: element size does not match list encoding")
	errOverflow       = errors.New("capnp: address or size overflow")

	// Encoding errors: the target of a setp isn't encodable as asked.
	errBadLandingPad     = errors.New("capnp: invalid far pointer landing pad")
	errBadTag            = errors.New("capnp: invalid composite list tag word")
	errListMemberBackPtr = errors.New("capnp: cannot set pointer slot of a composite list element")
	errBitListStruct     = errors.New("capnp: cannot store a struct in a bit list")

	// Allocation / traversal errors.
	errReadLimit = errors.New("capnp: read traversal limit exceeded")
	errDepthLimit = errors.New("capnp: pointer depth limit exceeded")

	errNoCreateCallback = errors.New("capnp: message has no segment allocator")
	errNoLookupCallback = errors.New("capnp: message has no segment lookup")
	errSegmentNotFound   = errors.New("capnp: unknown segment id")
	errReadOnlyArena     = errors.New("capnp: arena does not support allocation")
)

// wrapf annotates err with a formatted message using pkg/errors,
// preserving a stack trace for %+v logging during development
// (matches the teacher's own error-wrapping convention).
func wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
