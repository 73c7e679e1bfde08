package rohcctx

import (
	"fmt"

	"github.com/rohc-tcp/compressor/classifier"
	"github.com/rohc-tcp/compressor/ipheader"
	"github.com/rohc-tcp/compressor/wlsb"
)

// RefreshState is the three-state refresh state machine of §3.
type RefreshState int

// The three refresh states, in the order §4.6 advances through them.
const (
	StateIR RefreshState = iota
	StateFO
	StateSO
)

func (s RefreshState) String() string {
	switch s {
	case StateIR:
		return "IR"
	case StateFO:
		return "FO"
	case StateSO:
		return "SO"
	default:
		return fmt.Sprintf("UNKNOWN_STATE_%d", int(s))
	}
}

// IPRecord is one IP-layer chain entry's persisted context fields (§3).
// Version 4 and 6 carry the common fields plus their version-specific
// ones; Version 0 marks an IPv6 extension-header entry, identified by
// ExtKind.
type IPRecord struct {
	Version uint8
	ExtKind ipheader.ExtKind

	SrcAddr, DstAddr []byte
	Protocol         uint8 // next-header / upper-layer protocol
	DSCP             uint8
	ECN              uint8
	TTL              uint8 // TTL (v4) or Hop Limit (v6)

	// TTLIrregular marks whether this entry's TTL/HopLimit differs from the
	// previous packet's and must therefore ride in the irregular chain
	// (§13 supplement #3: tracked per entry, not once for the whole chain).
	TTLIrregular bool

	// v4-only
	LastIPID     uint16
	Behavior     classifier.Behavior
	LastBehavior classifier.Behavior
	DF           bool

	// v6-only
	FlowLabel uint32

	// extension-only
	ExtNextHeader uint8
	ExtValue      []byte
}

// TCPRecord is the persisted TCP-layer context (§3).
type TCPRecord struct {
	OldHeader  ipheader.TCPInfo
	SeqNumber  uint32
	AckNumber  uint32
	ScaledSeq  wlsb.Scaled
	ScaledAck  wlsb.Scaled
	AckStride  uint32
	MSN        uint16
	ECNUsed    bool
	SeqChanges int
	LastSeq    uint32

	pendingAckDelta uint32
}

// UpdateAckStride implements the ack_stride discovery debounce of §13
// supplement #1: ack_stride only becomes (or stays) active once the same
// nonzero ack delta has been observed on two consecutive packets; any
// other observed delta resets it to 0 (disabled).
func (t *TCPRecord) UpdateAckStride(newAck uint32) {
	delta := newAck - t.AckNumber
	switch {
	case delta == 0:
		// No ack advance this packet; leave the existing stride alone.
	case delta == t.pendingAckDelta:
		t.AckStride = delta
	default:
		t.AckStride = 0
	}
	t.pendingAckDelta = delta
}
