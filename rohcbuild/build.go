package rohcbuild

import (
	"bytes"
	"errors"

	"github.com/rohc-tcp/compressor/ipheader"
	"github.com/rohc-tcp/compressor/rohcbuild/cowriter"
	"github.com/rohc-tcp/compressor/rohcctx"
)

// Errors Build can return, per §4.6/§7's taxonomy. Context mismatch is not
// among them -- that is CheckContext's job, checked by the caller before
// Build runs.
var (
	ErrDestTooSmall = errors.New("rohcbuild: destination buffer too small")
)

// decodedPacket bundles the parsed packet with whatever per-call facts
// the chain writers and CO builders need, so they share one argument
// shape instead of threading loose parameters.
type decodedPacket struct {
	pkt *ipheader.Packet
}

// Result is what Build reports back to the caller on success.
type Result struct {
	Format        Format
	Len           int
	PayloadOffset int
}

// Build is the packet-builder half of the profile's encode entry point:
// given a context already known to match pkt (via classifier.CheckContext),
// it picks a format, writes the compressed packet into dest, and advances
// the context's refresh state, IP-ID behavior, ack_stride, and MSN/old
// header. On any failure the context is left unchanged, per §4.6.
func Build(ctx *rohcctx.Context, pkt *ipheader.Packet, dest []byte) (Result, error) {
	dp := &decodedPacket{pkt: pkt}
	savedState := ctx.State
	savedChain := append([]rohcctx.IPRecord(nil), ctx.IPChain...)
	savedOpts := *ctx.Options
	markTTLIrregular(ctx, pkt)
	if extChainChanged(ctx, pkt) {
		ctx.State = rohcctx.StateIR
	}

	decision := SelectFormat(ctx, pkt)

	w := cowriter.New(dest)
	var err error
	switch decision.Format {
	case FormatIR:
		err = buildIR(w, ctx, dp)
	case FormatIRDYN:
		err = buildIRDYN(w, ctx, dp)
	case FormatCoCommon:
		err = buildCoCommon(w, ctx, dp)
	case FormatRnd1:
		err = buildRnd1(w, ctx, dp)
	case FormatRnd2:
		err = buildRnd2(w, ctx, dp)
	case FormatRnd8:
		err = buildRnd8(w, ctx, dp)
	case FormatSeq1:
		err = buildSeq1(w, ctx, dp)
	case FormatSeq2:
		err = buildSeq2(w, ctx, dp)
	case FormatSeq5:
		err = buildSeq5(w, ctx, dp)
	case FormatSeq8:
		err = buildSeq8(w, ctx, dp)
	}
	if err != nil {
		ctx.State, *ctx.Options = savedState, savedOpts
		copy(ctx.IPChain, savedChain)
		if errors.Is(err, cowriter.ErrBufferTooSmall) {
			return Result{}, ErrDestTooSmall
		}
		return Result{}, err
	}

	advanceContext(ctx, pkt)
	advanceState(ctx)

	return Result{Format: decision.Format, Len: w.Len(), PayloadOffset: pkt.HeaderLen}, nil
}

func markTTLIrregular(ctx *rohcctx.Context, pkt *ipheader.Packet) {
	i := 0
	for _, link := range pkt.Chain {
		if i >= len(ctx.IPChain) {
			return
		}
		switch link.Kind {
		case ipheader.LinkIPv4:
			ctx.IPChain[i].TTLIrregular = link.IPv4.TTL != ctx.IPChain[i].TTL
		case ipheader.LinkIPv6:
			ctx.IPChain[i].TTLIrregular = link.IPv6.HopLimit != ctx.IPChain[i].TTL
		}
		i++
	}
}

// extChainChanged reports whether any IPv6 extension-header entry's value
// (hop-by-hop, routing, destination-options, AH, MIME, GRE) differs from
// what the context last sent. Unlike TTL/HopLimit or DSCP/ECN, an
// extension's value has no irregular-chain or CO-trigger path of its own
// (§8 scenario 6): CheckContext still matches on chain shape alone, so the
// only way to get the new value to the decompressor is to force a full
// refresh.
func extChainChanged(ctx *rohcctx.Context, pkt *ipheader.Packet) bool {
	for i, link := range pkt.Chain {
		if i >= len(ctx.IPChain) {
			return false
		}
		if link.Kind != ipheader.LinkExt || ctx.IPChain[i].Version != 0 {
			continue
		}
		if !bytes.Equal(ctx.IPChain[i].ExtValue, link.Ext.Value) {
			return true
		}
	}
	return false
}

// advanceContext applies the post-emission update of §4.6: ack_stride
// discovery, the innermost v4 IP-ID behavior, the IP-chain records, and
// finally MSN, old header and seq/ack, in that order so the earlier steps
// see the pre-advance values they need (ack_stride needs the old
// AckNumber; IP-ID behavior needs the old LastIPID). The IP-chain step
// refreshes each IP record's DSCP/ECN/TTL/FlowLabel and extension value so
// the next packet's irregular/dynamic-chain comparisons run against what
// was just sent.
func advanceContext(ctx *rohcctx.Context, pkt *ipheader.Packet) {
	ctx.TCP.UpdateAckStride(pkt.TCP.Ack)
	if v4 := innermostV4Link(pkt); v4 != nil {
		ctx.AdvanceIPIDBehavior(v4.IPID)
	}
	refreshIPChain(ctx, pkt)
	ctx.Advance(pkt)
}

func refreshIPChain(ctx *rohcctx.Context, pkt *ipheader.Packet) {
	for i, link := range pkt.Chain {
		if i >= len(ctx.IPChain) {
			return
		}
		rec := &ctx.IPChain[i]
		switch link.Kind {
		case ipheader.LinkIPv4:
			rec.DSCP, rec.ECN, rec.TTL, rec.DF = link.IPv4.DSCP, link.IPv4.ECN, link.IPv4.TTL, link.IPv4.DF
		case ipheader.LinkIPv6:
			rec.DSCP, rec.ECN, rec.TTL, rec.FlowLabel = link.IPv6.DSCP, link.IPv6.ECN, link.IPv6.HopLimit, link.IPv6.FlowLabel
		case ipheader.LinkExt:
			rec.ExtValue = append([]byte(nil), link.Ext.Value...)
		}
	}
}

func advanceState(ctx *rohcctx.Context) {
	switch ctx.State {
	case rohcctx.StateIR:
		ctx.State = rohcctx.StateFO
	case rohcctx.StateFO:
		ctx.State = rohcctx.StateSO
	}
}
