package tcpopts

import (
	"encoding/binary"

	"github.com/rohc-tcp/compressor/wlsb"
)

// XIItem is one entry of the list-of-XI dynamic-chain form.
type XIItem struct {
	Index    uint8
	HasValue bool
}

// BuildList serializes the dynamic-chain "list of XI items" form of §4.5:
// a begin byte (item count in the low 4 bits, PS bit at 0x10) followed by
// either 4-bit or 8-bit XI fields (4-bit chosen when every index fits in 3
// bits, i.e. stays below 8, with a zero padding nibble on an odd count),
// followed by the compressed values in order.
func BuildList(items []XIItem, compressedValues [][]byte) []byte {
	ps8 := false
	for _, it := range items {
		if it.Index >= 8 {
			ps8 = true
			break
		}
	}

	begin := byte(len(items) & 0x0f)
	if ps8 {
		begin |= 0x10
	}
	out := []byte{begin}

	if ps8 {
		for _, it := range items {
			b := it.Index & 0x7f
			if it.HasValue {
				b |= 0x80
			}
			out = append(out, b)
		}
	} else {
		for i := 0; i < len(items); i += 2 {
			hi := nibbleFor(items[i])
			var lo byte
			if i+1 < len(items) {
				lo = nibbleFor(items[i+1])
			}
			out = append(out, hi<<4|lo)
		}
	}
	for _, v := range compressedValues {
		out = append(out, v...)
	}
	return out
}

func nibbleFor(it XIItem) byte {
	b := it.Index & 0x7
	if it.HasValue {
		b |= 0x8
	}
	return b
}

// EncodeIrregularMSS is the MSS per-format irregular encoding: the 2-byte
// MSS value.
func EncodeIrregularMSS(mss uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, mss)
	return b
}

// EncodeIrregularWindowScale is the WINDOW per-format irregular encoding:
// the 1-byte shift count.
func EncodeIrregularWindowScale(shift uint8) []byte {
	return []byte{shift}
}

// EncodeIrregularTimestamp is the TIMESTAMP per-format irregular encoding:
// timestamp-LSB of TSval against refTSval, then of TSecr against refTSecr.
func EncodeIrregularTimestamp(refTSval, tsval, refTSecr, tsecr uint32) (out []byte, lossy bool) {
	d1, bits1, lossy1 := wlsb.EncodeTimestampLSB(refTSval, tsval)
	d2, bits2, lossy2 := wlsb.EncodeTimestampLSB(refTSecr, tsecr)
	out = packTSField(d1, bits1)
	out = append(out, packTSField(d2, bits2)...)
	return out, lossy1 || lossy2
}

// packTSField packs one timestamp-LSB discriminator+value into its wire
// bytes: the discriminator prefix (0, 10, 110, 111, or a full-32-bit
// fallback with no prefix) followed by the value bits, MSB first.
func packTSField(disc wlsb.TSDiscriminator, bits uint32) []byte {
	var total uint64
	var totalBits uint8
	switch disc {
	case wlsb.TS7:
		total = uint64(bits) & (1<<7 - 1)
		totalBits = 1 + 7
	case wlsb.TS14:
		total = uint64(0b10)<<14 | uint64(bits)&(1<<14-1)
		totalBits = 2 + 14
	case wlsb.TS21:
		total = uint64(0b110)<<21 | uint64(bits)&(1<<21-1)
		totalBits = 3 + 21
	case wlsb.TS29:
		total = uint64(0b111)<<29 | uint64(bits)&(1<<29-1)
		totalBits = 3 + 29
	default:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, bits)
		return b
	}
	nbytes := int((totalBits + 7) / 8)
	shifted := total << (uint(nbytes*8) - uint(totalBits))
	out := make([]byte, nbytes)
	for i := nbytes - 1; i >= 0; i-- {
		out[i] = byte(shifted)
		shifted >>= 8
	}
	return out
}

// EncodeIrregularSACK is the SACK per-format irregular encoding: a count
// byte followed by each block encoded against ack_number (the first
// block) or the previous block's end (subsequent blocks), per §4.1.
func EncodeIrregularSACK(ackNumber uint32, starts, ends []uint32) []byte {
	out := []byte{byte(len(starts))}
	ref := ackNumber
	for i := range starts {
		blk := wlsb.EncodeSACKBlock(ref, starts[i], ends[i])
		out = append(out, packSACKField(blk.StartDisc, blk.StartBits)...)
		out = append(out, packSACKField(blk.EndDisc, blk.EndBits)...)
		ref = ends[i]
	}
	return out
}

func packSACKField(disc wlsb.SACKDisc, bits uint32) []byte {
	var total uint64
	var totalBits uint8
	switch disc {
	case wlsb.SACK15:
		total = uint64(bits) & (1<<15 - 1)
		totalBits = 1 + 15
	case wlsb.SACK22:
		total = uint64(0b10)<<22 | uint64(bits)&(1<<22-1)
		totalBits = 2 + 22
	default:
		total = uint64(0b11)<<30 | uint64(bits)&(1<<30-1)
		totalBits = 2 + 30
	}
	nbytes := int((totalBits + 7) / 8)
	shifted := total << (uint(nbytes*8) - uint(totalBits))
	out := make([]byte, nbytes)
	for i := nbytes - 1; i >= 0; i-- {
		out[i] = byte(shifted)
		shifted >>= 8
	}
	return out
}

// GenericIrregularMarker is the fallback marker for an unknown kind that
// could not be given a table slot (§4.5 point 5).
var GenericIrregularMarker = []byte{0xff, 0x00}
