// Package rohcbuild is the packet builder of §4.6: format selection over
// the refresh state machine and the CO format gate, static/dynamic/
// irregular chain emission, CRC placement, and the post-emission context
// update.
package rohcbuild

import (
	"fmt"

	"github.com/rohc-tcp/compressor/classifier"
	"github.com/rohc-tcp/compressor/ipheader"
	"github.com/rohc-tcp/compressor/rohcctx"
)

// Format identifies which wire format was chosen for one packet.
type Format int

// The formats named in §4.6. The rnd_*/seq_* family is collapsed to the
// representative subset that exercises every branch of the decision tree
// (payload present, ack present/unchanged, low-bits-match-old, window
// unchanged, rsf unchanged, scaled seq/ack eligible) rather than all
// sixteen RFC variants; co_common is the catch-all any trigger forces.
const (
	FormatIR Format = iota
	FormatIRDYN
	FormatCoCommon
	FormatRnd1 // no scaled form applies (16-bit seq LSB), random/zero IP-ID
	FormatRnd2 // seq scaling stable, random/zero IP-ID
	FormatRnd8 // ecn_used, random/zero IP-ID
	FormatSeq1 // no scaled form applies (16-bit seq LSB), sequential IP-ID
	FormatSeq2 // seq scaling stable, sequential IP-ID
	FormatSeq5 // ack scaling stable (ack_stride), sequential IP-ID
	FormatSeq8 // ecn_used, sequential IP-ID
)

func (f Format) String() string {
	switch f {
	case FormatIR:
		return "IR"
	case FormatIRDYN:
		return "IR-DYN"
	case FormatCoCommon:
		return "co_common"
	case FormatRnd1:
		return "rnd_1"
	case FormatRnd2:
		return "rnd_2"
	case FormatRnd8:
		return "rnd_8"
	case FormatSeq1:
		return "seq_1"
	case FormatSeq2:
		return "seq_2"
	case FormatSeq5:
		return "seq_5"
	case FormatSeq8:
		return "seq_8"
	default:
		return fmt.Sprintf("UNKNOWN_FORMAT_%d", int(f))
	}
}

func sequentialIPID(b classifier.Behavior) bool {
	return b == classifier.BehaviorSequential || b == classifier.BehaviorSequentialSwapped
}

// innermostV4Link returns the IPv4Info of the last IPv4 link in pkt's
// chain, or nil if it has none.
func innermostV4Link(pkt *ipheader.Packet) *ipheader.IPv4Info {
	for i := len(pkt.Chain) - 1; i >= 0; i-- {
		if pkt.Chain[i].Kind == ipheader.LinkIPv4 {
			return pkt.Chain[i].IPv4
		}
	}
	return nil
}

// coCommonTriggers reports whether any of the §4.6 enumerated conditions
// forces co_common, given the context's pre-update state and the
// candidate packet.
func coCommonTriggers(ctx *rohcctx.Context, pkt *ipheader.Packet, innermostV4 *rohcctx.IPRecord) bool {
	old := ctx.TCP.OldHeader
	if pkt.TCP.Flags.ACK != old.Flags.ACK || pkt.TCP.Flags.URG != old.Flags.URG {
		return true
	}
	if innermostV4 != nil {
		if v4 := innermostV4Link(pkt); v4 != nil {
			candidate := classifier.AdvanceIPIDBehavior(innermostV4.Behavior, innermostV4.LastIPID, v4.IPID)
			if candidate != innermostV4.Behavior {
				return true
			}
			if v4.DF != innermostV4.DF {
				return true
			}
		}
	}
	if pkt.TCP.Flags.ECE != old.Flags.ECE || pkt.TCP.Flags.CWR != old.Flags.CWR {
		return true
	}
	if hi32(pkt.TCP.Seq) != hi32(ctx.TCP.SeqNumber) || hi32(pkt.TCP.Ack) != hi32(ctx.TCP.AckNumber) {
		return true
	}
	if pkt.TCP.Urgent != 0 {
		return true
	}
	for _, r := range ctx.IPChain {
		if r.TTLIrregular {
			return true
		}
	}
	return false
}

func hi32(v uint32) uint32 { return v & 0xffff0000 }

// Decision is the result of SelectFormat: which format to emit, plus the
// precomputed facts the builder needs to avoid recomputing them.
type Decision struct {
	Format    Format
	ECNUsed   bool
	Seq       classifier.Behavior // innermost v4 behavior; BehaviorRandom if none
	AckStable bool
	SeqStable bool
}

// SelectFormat implements the §4.6 coarse-then-fine format gate. State
// advancement (IR->FO->SO) is the caller's responsibility; SelectFormat
// only picks a format for the state it is given.
func SelectFormat(ctx *rohcctx.Context, pkt *ipheader.Packet) Decision {
	var innermost *rohcctx.IPRecord
	if idx := ctx.InnermostV4Index(); idx >= 0 {
		innermost = &ctx.IPChain[idx]
	}

	switch ctx.State {
	case rohcctx.StateIR:
		return Decision{Format: FormatIR}
	case rohcctx.StateFO:
		return Decision{Format: FormatIRDYN}
	}

	ecnUsed := ctx.TCP.ECNUsed
	behavior := classifier.BehaviorRandom
	if innermost != nil {
		behavior = innermost.Behavior
	}
	seq := sequentialIPID(behavior)

	if coCommonTriggers(ctx, pkt, innermost) {
		return Decision{Format: FormatCoCommon, ECNUsed: ecnUsed, Seq: behavior}
	}

	if ecnUsed {
		if seq {
			return Decision{Format: FormatSeq8, ECNUsed: true, Seq: behavior}
		}
		return Decision{Format: FormatRnd8, ECNUsed: true, Seq: behavior}
	}

	ackStable := ctx.TCP.AckStride != 0 && (pkt.TCP.Ack-ctx.TCP.AckNumber) == ctx.TCP.AckStride
	seqPayload := pkt.TCP.PayloadLen > 0
	seqStable := seqPayload && pkt.TCP.PayloadLen == ctx.TCP.OldHeader.PayloadLen

	switch {
	case seq && ackStable:
		return Decision{Format: FormatSeq5, Seq: behavior, AckStable: true}
	case seq && seqStable:
		return Decision{Format: FormatSeq2, Seq: behavior, SeqStable: true}
	case seq:
		return Decision{Format: FormatSeq1, Seq: behavior}
	case seqStable:
		return Decision{Format: FormatRnd2, Seq: behavior, SeqStable: true}
	default:
		return Decision{Format: FormatRnd1, Seq: behavior}
	}
}
