package rohcbuild

import (
	"encoding/binary"

	"github.com/rohc-tcp/compressor/rohcbuild/cowriter"
	"github.com/rohc-tcp/compressor/rohccrc"
	"github.com/rohc-tcp/compressor/rohcctx"
	"github.com/rohc-tcp/compressor/wlsb"
)

// discriminator bytes identifying each format on the wire. The CO family's
// values are arbitrary but distinct and stable across a run; RFC 6846
// fixes the real bit patterns at sub-byte granularity, which this
// byte-aligned rewrite does not attempt to reproduce (see the project's
// design notes).
const (
	discIR       = 0xfd
	discIRDYN    = 0xf8
	discCoCommon = 0x80
	discRnd1     = 0x81
	discRnd2     = 0x82
	discRnd8     = 0x83
	discSeq1     = 0x91
	discSeq2     = 0x92
	discSeq5     = 0x93
	discSeq8     = 0x94
)

// reserveCRC writes disc, reserves one byte for the CRC, and returns its
// offset so the caller can patch it once the rest of the header is known.
func reserveCRC(w *cowriter.Writer, disc byte) (crcOffset int, err error) {
	if err := w.WriteByte(disc); err != nil {
		return 0, err
	}
	return w.Reserve(1)
}

// packCRC folds a CRC value of the given width into the single reserved
// byte: width 8 uses the whole byte, width 7 the top 7 bits, width 3 the
// top 3 bits, leaving the low bits zero.
func packCRC(width rohccrc.Width, crc uint8) byte {
	switch width {
	case rohccrc.Width3:
		return crc << 5
	case rohccrc.Width7:
		return crc << 1
	default:
		return crc
	}
}

func patchCRC(w *cowriter.Writer, offset int, width rohccrc.Width) {
	w.PatchByte(offset, 0)
	crc := rohccrc.Compute(width, w.Bytes())
	w.PatchByte(offset, packCRC(width, crc))
}

// buildIR emits a PACKET_TYPE_IR: discriminator, a reserved CRC-8 byte,
// the static chain, then the dynamic chain (with raw options appended).
func buildIR(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket) error {
	off, err := reserveCRC(w, discIR)
	if err != nil {
		return err
	}
	if err := writeStaticChain(w, ctx); err != nil {
		return err
	}
	if err := writeDynamicChain(w, ctx, decodedPkt.pkt, true); err != nil {
		return err
	}
	patchCRC(w, off, rohccrc.Width8)
	return writeIrregularChain(w, ctx, decodedPkt.pkt, ctx.TCP.ECNUsed)
}

// buildIRDYN emits a PACKET_TYPE_IR_DYN: discriminator, reserved CRC-8,
// then the dynamic chain (without raw options -- only IR carries those).
func buildIRDYN(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket) error {
	off, err := reserveCRC(w, discIRDYN)
	if err != nil {
		return err
	}
	if err := writeDynamicChain(w, ctx, decodedPkt.pkt, false); err != nil {
		return err
	}
	patchCRC(w, off, rohccrc.Width8)
	return writeIrregularChain(w, ctx, decodedPkt.pkt, ctx.TCP.ECNUsed)
}

// seqLSBWindow is the W-LSB interval used for the short seq/ack LSB
// fields shared by the rnd_1/seq_1 family.
var seqLSBWindow = wlsb.Window{K: 16, P: 8191}
var ackLSBWindow = wlsb.Window{K: 15, P: 8191}

func writeSeqLSB16(w *cowriter.Writer, value uint32) error {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(wlsb.Encode(seqLSBWindow, value)))
	return w.Write(b)
}

// buildRnd1 / buildSeq1 emit the short form: seq LSB (16 bits) plus a
// CRC-3 trailer. seq_1 additionally carries the innermost IP-ID's LSB,
// since its IP-ID is sequential and therefore worth compressing here.
func buildRnd1(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket) error {
	off, err := reserveCRC(w, discRnd1)
	if err != nil {
		return err
	}
	if err := writeSeqLSB16(w, decodedPkt.pkt.TCP.Seq); err != nil {
		return err
	}
	patchCRC(w, off, rohccrc.Width3)
	return writeIrregularChain(w, ctx, decodedPkt.pkt, false)
}

func buildSeq1(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket) error {
	off, err := reserveCRC(w, discSeq1)
	if err != nil {
		return err
	}
	if err := writeSeqLSB16(w, decodedPkt.pkt.TCP.Seq); err != nil {
		return err
	}
	if idx := ctx.InnermostV4Index(); idx >= 0 {
		rec := ctx.IPChain[idx]
		enc := wlsb.EncodeIPIDLSB(rec.Behavior, wlsb.Window{K: 4, P: 3}, rec.LastIPID, innermostIPID(decodedPkt, idx))
		if err := w.WriteByte(byte(enc.Bits)); err != nil {
			return err
		}
	}
	patchCRC(w, off, rohccrc.Width3)
	return writeIrregularChain(w, ctx, decodedPkt.pkt, false)
}

func innermostIPID(decodedPkt *decodedPacket, idx int) uint16 {
	for i := len(decodedPkt.pkt.Chain) - 1; i >= 0; i-- {
		if decodedPkt.pkt.Chain[i].IPv4 != nil {
			return decodedPkt.pkt.Chain[i].IPv4.IPID
		}
	}
	return 0
}

func innermostTTL(decodedPkt *decodedPacket, idx int) uint8 {
	for i := len(decodedPkt.pkt.Chain) - 1; i >= 0; i-- {
		if decodedPkt.pkt.Chain[i].IPv4 != nil {
			return decodedPkt.pkt.Chain[i].IPv4.TTL
		}
	}
	return 0
}

// buildRnd2 / buildSeq2 emit the scaled-seq form: scaled seq value (1
// byte) plus a CRC-3 trailer.
func buildRnd2(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket) error {
	off, err := reserveCRC(w, discRnd2)
	if err != nil {
		return err
	}
	scaled := wlsb.Scale(decodedPkt.pkt.TCP.Seq, uint32(decodedPkt.pkt.TCP.PayloadLen))
	if err := w.WriteByte(byte(scaled.Value)); err != nil {
		return err
	}
	patchCRC(w, off, rohccrc.Width3)
	return writeIrregularChain(w, ctx, decodedPkt.pkt, false)
}

func buildSeq2(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket) error {
	off, err := reserveCRC(w, discSeq2)
	if err != nil {
		return err
	}
	scaled := wlsb.Scale(decodedPkt.pkt.TCP.Seq, uint32(decodedPkt.pkt.TCP.PayloadLen))
	if err := w.WriteByte(byte(scaled.Value)); err != nil {
		return err
	}
	patchCRC(w, off, rohccrc.Width3)
	return writeIrregularChain(w, ctx, decodedPkt.pkt, false)
}

// buildSeq5 emits the scaled-ack form: scaled ack value (1 byte) plus a
// CRC-3 trailer, used once ack_stride has stabilized (§8 scenario 3).
func buildSeq5(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket) error {
	off, err := reserveCRC(w, discSeq5)
	if err != nil {
		return err
	}
	scaled := wlsb.Scale(decodedPkt.pkt.TCP.Ack, ctx.TCP.AckStride)
	if err := w.WriteByte(byte(scaled.Value)); err != nil {
		return err
	}
	patchCRC(w, off, rohccrc.Width3)
	return writeIrregularChain(w, ctx, decodedPkt.pkt, false)
}

// buildRnd8 / buildSeq8 emit the ecn_used form: 14-bit seq LSB, 15-bit ack
// LSB, ecn+ttl_hopl byte, an optional options list, and a CRC-7 trailer.
func buildEcnUsedForm(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket, disc byte, includeIPIDLSB bool) error {
	off, err := reserveCRC(w, disc)
	if err != nil {
		return err
	}
	seqWin := wlsb.Window{K: 14, P: 8191}
	ackWin := ackLSBWindow
	seqBits := wlsb.Encode(seqWin, decodedPkt.pkt.TCP.Seq)
	ackBits := wlsb.Encode(ackWin, decodedPkt.pkt.TCP.Ack)
	packed := seqBits<<15 | ackBits
	pb := make([]byte, 4)
	binary.BigEndian.PutUint32(pb, packed<<3)
	if err := w.Write(pb); err != nil {
		return err
	}

	ttlByte := byte(0)
	if idx := ctx.InnermostV4Index(); idx >= 0 {
		ttlByte = innermostTTL(decodedPkt, idx) & 0x7
	}
	ecnByte := byte(0)
	if decodedPkt.pkt.TCP.Flags.ECE {
		ecnByte |= 0x2
	}
	if decodedPkt.pkt.TCP.Flags.CWR {
		ecnByte |= 0x1
	}
	if err := w.WriteByte(ttlByte<<2 | ecnByte); err != nil {
		return err
	}

	if includeIPIDLSB {
		if idx := ctx.InnermostV4Index(); idx >= 0 {
			if err := w.WriteByte(byte(innermostIPID(decodedPkt, idx))); err != nil {
				return err
			}
		}
	}

	if err := writeOptionsChain(w, ctx, decodedPkt.pkt, false); err != nil {
		return err
	}
	patchCRC(w, off, rohccrc.Width7)
	return writeIrregularChain(w, ctx, decodedPkt.pkt, true)
}

func buildRnd8(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket) error {
	return buildEcnUsedForm(w, ctx, decodedPkt, discRnd8, false)
}

func buildSeq8(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket) error {
	return buildEcnUsedForm(w, ctx, decodedPkt, discSeq8, true)
}

// buildCoCommon emits the catch-all form: full seq and ack (variable
// length 32), window, RSF index, urgent pointer, then the options list
// and a CRC-7 trailer.
func buildCoCommon(w *cowriter.Writer, ctx *rohcctx.Context, decodedPkt *decodedPacket) error {
	off, err := reserveCRC(w, discCoCommon)
	if err != nil {
		return err
	}
	pkt := decodedPkt.pkt

	_, seqBytes := wlsb.EncodeVariableLength32(ctx.TCP.SeqNumber, pkt.TCP.Seq)
	_, ackBytes := wlsb.EncodeVariableLength32(ctx.TCP.AckNumber, pkt.TCP.Ack)
	lenByte := byte(len(seqBytes)<<4 | len(ackBytes))
	if err := w.WriteByte(lenByte); err != nil {
		return err
	}
	if err := w.Write(seqBytes); err != nil {
		return err
	}
	if err := w.Write(ackBytes); err != nil {
		return err
	}

	winBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(winBuf, pkt.TCP.Window)
	if err := w.Write(winBuf); err != nil {
		return err
	}
	if err := w.WriteByte(wlsb.RSFIndex(pkt.TCP.Flags.RSF())); err != nil {
		return err
	}
	urgBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(urgBuf, pkt.TCP.Urgent)
	if err := w.Write(urgBuf); err != nil {
		return err
	}

	if err := writeOptionsChain(w, ctx, pkt, false); err != nil {
		return err
	}
	patchCRC(w, off, rohccrc.Width7)
	return writeIrregularChain(w, ctx, pkt, ctx.TCP.ECNUsed)
}
