package rohcbuild

import (
	"encoding/binary"
	"errors"

	"github.com/rohc-tcp/compressor/classifier"
	"github.com/rohc-tcp/compressor/ipheader"
	"github.com/rohc-tcp/compressor/rohcbuild/cowriter"
	"github.com/rohc-tcp/compressor/rohcctx"
	"github.com/rohc-tcp/compressor/rohcmetrics"
	"github.com/rohc-tcp/compressor/tcpopts"
)

// writeStaticChain emits the fields that never change for the life of a
// flow: per IP-layer record its version-identifying fields and addresses,
// then the TCP ports.
func writeStaticChain(w *cowriter.Writer, ctx *rohcctx.Context) error {
	for _, r := range ctx.IPChain {
		switch r.Version {
		case 4:
			if err := w.WriteByte(4); err != nil {
				return err
			}
			if err := w.Write(r.SrcAddr); err != nil {
				return err
			}
			if err := w.Write(r.DstAddr); err != nil {
				return err
			}
			if err := w.WriteByte(r.Protocol); err != nil {
				return err
			}
		case 6:
			if err := w.WriteByte(6); err != nil {
				return err
			}
			if err := w.Write(r.SrcAddr); err != nil {
				return err
			}
			if err := w.Write(r.DstAddr); err != nil {
				return err
			}
			fl := make([]byte, 4)
			binary.BigEndian.PutUint32(fl, r.FlowLabel)
			if err := w.Write(fl); err != nil {
				return err
			}
		default: // extension header
			if err := w.WriteByte(0); err != nil {
				return err
			}
			if err := w.WriteByte(byte(r.ExtKind)); err != nil {
				return err
			}
		}
	}
	port := make([]byte, 4)
	binary.BigEndian.PutUint16(port[0:2], ctx.TCP.OldHeader.SrcPort)
	binary.BigEndian.PutUint16(port[2:4], ctx.TCP.OldHeader.DstPort)
	return w.Write(port)
}

// writeDynamicChain emits the fields that change rarely: per IP-layer
// record its DSCP/ECN, TTL/HopLimit, and (v4) IP-ID; then the TCP dynamic
// fields (window, full seq/ack, MSN, flags) and the options table's
// list-of-XI or raw-options form.
func writeDynamicChain(w *cowriter.Writer, ctx *rohcctx.Context, pkt *ipheader.Packet, includeRawOptions bool) error {
	for _, r := range ctx.IPChain {
		if r.Version == 0 {
			if err := w.Write(r.ExtValue); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteByte(r.DSCP<<2 | r.ECN); err != nil {
			return err
		}
		if err := w.WriteByte(r.TTL); err != nil {
			return err
		}
		if r.Version == 4 {
			idbuf := make([]byte, 2)
			binary.BigEndian.PutUint16(idbuf, r.LastIPID)
			if err := w.Write(idbuf); err != nil {
				return err
			}
		}
	}

	flagsByte := byte(0)
	f := pkt.TCP.Flags
	for bit, set := range map[byte]bool{0x80: f.CWR, 0x40: f.ECE, 0x20: f.URG, 0x10: f.ACK, 0x08: f.PSH, 0x04: f.RST, 0x02: f.SYN, 0x01: f.FIN} {
		if set {
			flagsByte |= bit
		}
	}
	hdr := make([]byte, 0, 12)
	hdr = append(hdr, flagsByte)
	winBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(winBuf, pkt.TCP.Window)
	hdr = append(hdr, winBuf...)
	seqBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(seqBuf, pkt.TCP.Seq)
	hdr = append(hdr, seqBuf...)
	ackBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(ackBuf, pkt.TCP.Ack)
	hdr = append(hdr, ackBuf...)
	msnBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(msnBuf, ctx.TCP.MSN)
	hdr = append(hdr, msnBuf...)
	if err := w.Write(hdr); err != nil {
		return err
	}

	return writeOptionsChain(w, ctx, pkt, includeRawOptions)
}

// writeOptionsChain walks pkt's TCP options through the options table and
// emits the list-of-XI dynamic-chain form, optionally followed by the raw
// option bytes (only the IR dynamic chain does this, per §4.5).
func writeOptionsChain(w *cowriter.Writer, ctx *rohcctx.Context, pkt *ipheader.Packet, includeRawOptions bool) error {
	raw, err := tcpopts.ParseOptions(pkt.TCP.Options)
	if err != nil {
		return err
	}
	refTSval, refTSecr := previousTimestamp(ctx)

	var items []tcpopts.XIItem
	var values [][]byte
	for _, opt := range raw {
		processed, err := ctx.Options.Process(opt.Kind, opt.Value)
		if err != nil {
			if errors.Is(err, tcpopts.ErrArenaFull) {
				rohcmetrics.OptionsTableFull.Inc()
			}
			return err
		}
		switch processed.Outcome {
		case tcpopts.OutcomeGenericIrregular:
			items = append(items, tcpopts.XIItem{Index: 0, HasValue: true})
			values = append(values, tcpopts.GenericIrregularMarker)
		case tcpopts.OutcomeSameIndexNoValue:
			items = append(items, tcpopts.XIItem{Index: processed.Index, HasValue: false})
		default: // OutcomeNewItem, OutcomeSameIndexNewValue
			items = append(items, tcpopts.XIItem{Index: processed.Index, HasValue: true})
			values = append(values, encodeOptionValue(ctx, opt, refTSval, refTSecr))
		}
	}

	if err := w.Write(tcpopts.BuildList(items, values)); err != nil {
		return err
	}
	if includeRawOptions {
		return w.Write(pkt.TCP.Options)
	}
	return nil
}

// previousTimestamp recovers the TSval/TSecr this context last saw (from
// old_tcphdr's own options), the reference the timestamp-LSB encoder
// compresses against. Absent a prior TIMESTAMP option, both are 0.
func previousTimestamp(ctx *rohcctx.Context) (tsval, tsecr uint32) {
	oldOpts, err := tcpopts.ParseOptions(ctx.TCP.OldHeader.Options)
	if err != nil {
		return 0, 0
	}
	for _, o := range oldOpts {
		if o.Kind == tcpopts.KindTimestamp && len(o.Value) >= 8 {
			return binary.BigEndian.Uint32(o.Value[0:4]), binary.BigEndian.Uint32(o.Value[4:8])
		}
	}
	return 0, 0
}

// encodeOptionValue renders one option's dynamic-chain "compressed value"
// per §4.5's per-format irregular encoders: MSS and WINDOW just reformat
// their already-compact raw value, TIMESTAMP and SACK actually compress
// against a reference. Kinds outside that set carry their raw value, per
// the dynamic chain's own "no further compression defined" fallback.
func encodeOptionValue(ctx *rohcctx.Context, opt tcpopts.RawOption, refTSval, refTSecr uint32) []byte {
	switch opt.Kind {
	case tcpopts.KindMSS:
		if len(opt.Value) >= 2 {
			return tcpopts.EncodeIrregularMSS(binary.BigEndian.Uint16(opt.Value))
		}
	case tcpopts.KindWindowScale:
		if len(opt.Value) >= 1 {
			return tcpopts.EncodeIrregularWindowScale(opt.Value[0])
		}
	case tcpopts.KindTimestamp:
		if len(opt.Value) >= 8 {
			tsval := binary.BigEndian.Uint32(opt.Value[0:4])
			tsecr := binary.BigEndian.Uint32(opt.Value[4:8])
			out, _ := tcpopts.EncodeIrregularTimestamp(refTSval, tsval, refTSecr, tsecr)
			return out
		}
	case tcpopts.KindSACK:
		starts, ends := tcpopts.ParseSACKBlocks(opt.Value)
		return tcpopts.EncodeIrregularSACK(ctx.TCP.AckNumber, starts, ends)
	}
	return append([]byte(nil), opt.Value...)
}

// writeIrregularChain emits the per-packet trailing fields of §4.6: per IP
// record ip_id (RANDOM), DSCP+ECN (when ecnUsed and not innermost),
// TTL/HopLimit (when the entry's TTLIrregular flag is set and it is not
// innermost), GRE/AH sequence deltas for extension entries, then the TCP
// ECN+res byte (when ecnUsed) and the checksum.
func writeIrregularChain(w *cowriter.Writer, ctx *rohcctx.Context, pkt *ipheader.Packet, ecnUsed bool) error {
	innermostIdx := -1
	for i, r := range ctx.IPChain {
		if r.Version == 4 || r.Version == 6 {
			innermostIdx = i
		}
	}
	for i, r := range ctx.IPChain {
		isInnermost := i == innermostIdx
		var link ipheader.Link
		if i < len(pkt.Chain) {
			link = pkt.Chain[i]
		}
		switch r.Version {
		case 4:
			if r.Behavior == classifier.BehaviorRandom && link.IPv4 != nil {
				idbuf := make([]byte, 2)
				binary.BigEndian.PutUint16(idbuf, link.IPv4.IPID)
				if err := w.Write(idbuf); err != nil {
					return err
				}
			}
			dscp, ecn, ttl := r.DSCP, r.ECN, r.TTL
			if link.IPv4 != nil {
				dscp, ecn, ttl = link.IPv4.DSCP, link.IPv4.ECN, link.IPv4.TTL
			}
			if ecnUsed && !isInnermost {
				if err := w.WriteByte(dscp<<2 | ecn); err != nil {
					return err
				}
			}
			if r.TTLIrregular && !isInnermost {
				if err := w.WriteByte(ttl); err != nil {
					return err
				}
			}
		case 6:
			dscp, ecn, ttl := r.DSCP, r.ECN, r.TTL
			if link.IPv6 != nil {
				dscp, ecn, ttl = link.IPv6.DSCP, link.IPv6.ECN, link.IPv6.HopLimit
			}
			if ecnUsed && !isInnermost {
				if err := w.WriteByte(dscp<<2 | ecn); err != nil {
					return err
				}
			}
			if r.TTLIrregular && !isInnermost {
				if err := w.WriteByte(ttl); err != nil {
					return err
				}
			}
		default: // extension header
			if r.ExtKind == ipheader.ExtGRE || r.ExtKind == ipheader.ExtAH {
				seqBuf := make([]byte, 4)
				binary.BigEndian.PutUint32(seqBuf, uint32(ctx.TCP.MSN))
				if err := w.Write(seqBuf); err != nil {
					return err
				}
			}
		}
	}

	if ecnUsed {
		ecnByte := byte(0)
		if pkt.TCP.Flags.ECE {
			ecnByte |= 0x2
		}
		if pkt.TCP.Flags.CWR {
			ecnByte |= 0x1
		}
		if err := w.WriteByte(ecnByte); err != nil {
			return err
		}
	}
	csum := make([]byte, 2)
	binary.BigEndian.PutUint16(csum, pkt.TCP.Checksum)
	return w.Write(csum)
}
