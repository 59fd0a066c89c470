package capnp

import (
	"sort"

	"github.com/rs/zerolog"
)

// Arena loads and creates the segments that back a Message (spec
// §4.B). Implementations decide the allocator policy; this package
// ships SingleSegment and MultiSegment, the two arenas of the
// reference C implementation (capn_init_mem's single-buffer mode and
// the multi-segment mode used when decoding a wire stream).
type Arena interface {
	// NumSegments returns how many segments the arena currently knows
	// about, so a freshly attached Message can enumerate existing data.
	NumSegments() int64

	// Data returns the current bytes of segment id, or an error if the
	// arena has no such segment.
	Data(id SegmentID) ([]byte, error)

	// Allocate finds or creates room for sz more bytes, preferring to
	// reuse an existing segment in segs that already has spare
	// capacity before growing. It returns the id of the segment that
	// now holds the new bytes at its end, and that segment's full
	// (possibly reallocated) backing slice.
	Allocate(sz Size, segs map[SegmentID]*Segment) (SegmentID, []byte, error)
}

const minArenaGrowth Size = 8192 // 8 KiB, spec §4.B default heap policy

// A Message is the arena owning a set of segments and the bookkeeping
// that ties them into one serializable object graph (spec §3).
type Message struct {
	Arena Arena

	// DepthLimit bounds pointer-chasing recursion; zero means the
	// default of 64 (spec §5: no blocking, but depth is still bounded
	// to keep traversal of hostile input linear).
	DepthLimit uint

	// TraversalLimit bounds total bytes read through pointers, zero
	// means the default 64 MiB (spec §4.K).
	TraversalLimit uint64

	// Logger, if set, receives debug-level events when a segment is
	// registered and when an allocation spills into a segment other than
	// the one preferred (spec §4.J). Far-pointer writes are not logged.
	// Nil by default.
	Logger *zerolog.Logger

	segs     map[SegmentID]*Segment
	order    []*Segment // segment list in traversal/creation order
	byBase   []*Segment // sorted by synthetic base address, for segmentAtBase
	nextBase uint64

	rl ReadLimiter
}

// NewMessage creates a new message backed by arena, returning the
// message and its first segment with room reserved for the root
// pointer word.
func NewMessage(arena Arena) (*Message, *Segment, error) {
	msg := &Message{Arena: arena}
	if n := arena.NumSegments(); n > 1 {
		return nil, nil, wrapf(errObjectSize, "NewMessage: arena already has %d segments", n)
	}
	seg, err := msg.Segment(0)
	if err != nil {
		return nil, nil, err
	}
	if len(seg.data) != 0 {
		return nil, nil, wrapf(errObjectSize, "NewMessage: arena's first segment is not empty")
	}
	if _, _, err := alloc(seg, wordSize); err != nil {
		return nil, nil, wrapf(err, "NewMessage: reserve root pointer")
	}
	return msg, seg, nil
}

func (m *Message) depthLimit() uint {
	if m.DepthLimit == 0 {
		return maxDepth
	}
	return m.DepthLimit
}

// ReadLimiter returns the message's traversal budget tracker.
func (m *Message) ReadLimiter() *ReadLimiter {
	if m.rl.limit == 0 {
		m.rl.limit = m.TraversalLimit
		if m.rl.limit == 0 {
			m.rl.limit = 64 << 20
		}
		m.rl.remaining = m.rl.limit
	}
	return &m.rl
}

// NumSegments returns the number of segments currently registered.
func (m *Message) NumSegments() int64 {
	return int64(len(m.order))
}

// Segment returns the segment with the given id, loading it from the
// arena on first access.
func (m *Message) Segment(id SegmentID) (*Segment, error) {
	if s, ok := m.segs[id]; ok {
		return s, nil
	}
	if m.Arena == nil {
		return nil, errNoLookupCallback
	}
	data, err := m.Arena.Data(id)
	if err != nil {
		return nil, wrapf(err, "capnp: load segment %d", id)
	}
	return m.registerSegment(id, data), nil
}

func (m *Message) registerSegment(id SegmentID, data []byte) *Segment {
	s := &Segment{msg: m, id: id, data: data}
	if m.segs == nil {
		m.segs = make(map[SegmentID]*Segment)
	}
	m.segs[id] = s
	m.order = append(m.order, s)

	base := m.nextBase
	m.nextBase += uint64(cap(data)) + wordSizeSlack
	i := sort.Search(len(m.byBase), func(i int) bool { return m.byBase[i].syntheticBase >= base })
	s.syntheticBase = base
	m.byBase = append(m.byBase, nil)
	copy(m.byBase[i+1:], m.byBase[i:])
	m.byBase[i] = s

	if m.Logger != nil {
		m.Logger.Debug().Uint32("segment", uint32(id)).Int("bytes", len(data)).Msg("capnp: segment registered")
	}
	return s
}

// wordSizeSlack keeps synthetic bases strictly increasing even for a
// zero-capacity segment.
const wordSizeSlack = 8

// segmentAtBase finds the segment whose synthetic base range contains
// base, using the address-keyed ordered index described in spec §3/
// §4.B. In this Go port, pointer resolution never actually needs this
// (a Ptr always carries its own *Segment), so the index exists for
// parity with the reference design and for tooling that wants to map
// a raw offset back to a segment; see DESIGN.md.
func (m *Message) segmentAtBase(base uint64) (*Segment, bool) {
	i := sort.Search(len(m.byBase), func(i int) bool { return m.byBase[i].syntheticBase > base }) - 1
	if i < 0 || i >= len(m.byBase) {
		return nil, false
	}
	s := m.byBase[i]
	if base < s.syntheticBase || base >= s.syntheticBase+uint64(cap(s.data))+wordSizeSlack {
		return nil, false
	}
	return s, true
}

// allocate grows the message by sz bytes via its Arena and registers
// any newly created segment. hint is the segment the caller preferred;
// it is not passed to the Arena and is used only to log a spill.
func (m *Message) allocate(sz Size, hint *Segment) (*Segment, Address, error) {
	if m.Arena == nil {
		return nil, 0, errNoCreateCallback
	}
	if m.segs == nil {
		m.segs = make(map[SegmentID]*Segment)
	}
	id, data, err := m.Arena.Allocate(sz, m.segs)
	if err != nil {
		return nil, 0, wrapf(err, "capnp: allocate %d bytes", sz)
	}
	seg, ok := m.segs[id]
	if !ok {
		seg = m.registerSegment(id, data)
	} else {
		seg.data = data
	}
	addr := Address(len(data) - int(sz))
	if m.Logger != nil && hint != nil && seg != hint {
		m.Logger.Debug().Uint32("from", uint32(hint.id)).Uint32("to", uint32(seg.id)).Msg("capnp: allocation spilled to another segment")
	}
	return seg, addr, nil
}

// RootPtr returns the message's root object.
func (m *Message) RootPtr() (Ptr, error) {
	s, err := m.Segment(0)
	if err != nil {
		return Ptr{}, err
	}
	return s.root().At(0)
}

// SetRootPtr replaces the message's root object, deep-copying p if it
// lives in a different message.
func (m *Message) SetRootPtr(p Ptr) error {
	s, err := m.Segment(0)
	if err != nil {
		return err
	}
	root := s.root()
	resolved, err := resolvePointerForWrite(nil, root.seg, p)
	if err != nil {
		return err
	}
	return root.Set(0, resolved)
}

// ReadLimiter tracks how many bytes a message has permitted its
// accessors to traverse, guarding against the "amplification" attack
// a small malicious message can mount on a naive decoder (spec §4.K).
type ReadLimiter struct {
	limit     uint64
	remaining uint64
}

func (rl *ReadLimiter) canRead(sz Size) bool {
	if rl.limit == 0 {
		// Not yet initialized through Message.ReadLimiter(); treat as
		// unlimited rather than reject everything.
		return true
	}
	if uint64(sz) > rl.remaining {
		return false
	}
	rl.remaining -= uint64(sz)
	return true
}

// Reset restores the full traversal budget, e.g. before re-walking a
// message that was already validated once.
func (rl *ReadLimiter) Reset(limit uint64) {
	rl.limit = limit
	rl.remaining = limit
}

// --- Arenas ---

type singleSegmentArena struct {
	b *[]byte
}

// SingleSegment returns an Arena that stores a message entirely in one
// growable buffer, starting from the (possibly nil) data given. This
// is the Go equivalent of the reference implementation's
// capn_init_malloc single-segment mode.
func SingleSegment(data []byte) Arena {
	return &singleSegmentArena{b: &data}
}

func (ss *singleSegmentArena) NumSegments() int64 {
	if *ss.b == nil {
		return 0
	}
	return 1
}

func (ss *singleSegmentArena) Data(id SegmentID) ([]byte, error) {
	if id != 0 {
		return nil, errSegmentNotFound
	}
	return *ss.b, nil
}

func (ss *singleSegmentArena) Allocate(sz Size, segs map[SegmentID]*Segment) (SegmentID, []byte, error) {
	cur := (*ss.b)
	if seg, ok := segs[0]; ok {
		cur = seg.data
	}
	if hasCapacity(cur, sz) {
		grown := cur[:len(cur)+int(sz)]
		*ss.b = grown
		return 0, grown, nil
	}
	want := Size(len(cur)) + sz
	newCap := Size(cap(cur)) * 2
	if newCap < minArenaGrowth {
		newCap = minArenaGrowth
	}
	for newCap < want {
		newCap *= 2
	}
	grown := make([]byte, len(cur), newCap)
	copy(grown, cur)
	grown = grown[:len(cur)+int(sz)]
	*ss.b = grown
	return 0, grown, nil
}

type multiSegmentArena struct {
	b *[][]byte
}

// MultiSegment returns an Arena that grows a message by appending new
// segments rather than reallocating existing ones, matching how a
// decoded multi-segment wire message is represented in memory.
func MultiSegment(segs [][]byte) Arena {
	if segs == nil {
		segs = [][]byte{}
	}
	return &multiSegmentArena{b: &segs}
}

func (ms *multiSegmentArena) NumSegments() int64 {
	return int64(len(*ms.b))
}

func (ms *multiSegmentArena) Data(id SegmentID) ([]byte, error) {
	if id == 0 && len(*ms.b) == 0 {
		// Segment zero is always implicitly reserved for the root
		// pointer, even before the arena has allocated any bytes.
		return nil, nil
	}
	if int64(id) >= int64(len(*ms.b)) {
		return nil, errSegmentNotFound
	}
	return (*ms.b)[id], nil
}

func (ms *multiSegmentArena) Allocate(sz Size, segs map[SegmentID]*Segment) (SegmentID, []byte, error) {
	for id := SegmentID(0); int64(id) < int64(len(*ms.b)); id++ {
		cur := (*ms.b)[id]
		if seg, ok := segs[id]; ok {
			cur = seg.data
		}
		if hasCapacity(cur, sz) {
			grown := cur[:len(cur)+int(sz)]
			(*ms.b)[id] = grown
			return id, grown, nil
		}
	}
	newCap := minArenaGrowth
	for newCap < sz {
		newCap *= 2
	}
	fresh := make([]byte, sz, newCap)
	*ms.b = append(*ms.b, fresh)
	return SegmentID(len(*ms.b) - 1), fresh, nil
}

type readOnlyArena struct{ Arena }

func (readOnlyArena) Allocate(sz Size, segs map[SegmentID]*Segment) (SegmentID, []byte, error) {
	return 0, nil, errReadOnlyArena
}
