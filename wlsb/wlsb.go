// Package wlsb implements the primitive field encoders of §4.1: W-LSB,
// scaled sequence/ack fields, variable-length-32, static-or-irregular 8/16,
// timestamp LSB, SACK blocks, RSF index, and behavior-aware IP-ID LSB.
//
// Every encoder here is a pure function of its inputs -- none of them touch
// a Flow Context. Where an encoder needs to know the IP-ID behavior
// classification, it takes a classifier.Behavior value rather than a
// context, so this package has exactly one upstream dependency.
package wlsb

import (
	"encoding/binary"

	"github.com/rohc-tcp/compressor/classifier"
)

// Window describes a W-LSB interpretation interval: k low-order bits are
// transmitted, and the decompressor (not implemented here) recovers the
// full value from the interval [ref-p, ref+(2^k-1-p)].
type Window struct {
	K uint8
	P int32
}

// InInterval reports whether value lies in the interval defined by w
// relative to ref, accounting for modular (mod 2^32) wraparound the way
// sequence and timestamp counters wrap.
func InInterval(w Window, ref, value uint32) bool {
	lower := ref - uint32(w.P)
	width := uint32(1)<<w.K - 1
	return value-lower <= width
}

// Encode returns the k low-order bits of value. The caller must already
// have verified InInterval; Encode does not check it.
func Encode(w Window, value uint32) uint32 {
	return value & (uint32(1)<<w.K - 1)
}

// Decode reconstructs the value an encoder chose, given the same ref used
// at encode time and the k transmitted bits. This is the one piece of
// decompressor-side logic kept here, purely so this package's own tests
// can assert the round-trip property of §8 without a separate decoder.
func Decode(w Window, ref uint32, bits uint32) uint32 {
	lower := ref - uint32(w.P)
	width := uint32(1) << w.K
	mask := width - 1
	candidate := (lower &^ mask) | (bits & mask)
	if candidate < lower {
		candidate += width
	}
	return candidate
}

// Scaled is the (scaled value, residue) pair produced by scaling a TCP
// sequence or ack number against a payload size / ack_stride divisor.
type Scaled struct {
	Factor  uint32
	Value   uint32
	Residue uint32
}

// Scale computes Scaled for value against factor. A zero factor disables
// scaling: the residue is simply value and Value is 0, matching "scaled
// undefined" in §4.1.
func Scale(value, factor uint32) Scaled {
	if factor == 0 {
		return Scaled{Factor: 0, Value: 0, Residue: value}
	}
	return Scaled{Factor: factor, Value: value / factor, Residue: value % factor}
}

// VLIndicator is the 2-bit selector of variable_length_32_enc.
type VLIndicator uint8

// The four variable_length_32_enc indicators of §4.1.
const (
	VLUnchanged VLIndicator = 0x0
	VLBits8     VLIndicator = 0x1
	VLBits16    VLIndicator = 0x2
	VLBits32    VLIndicator = 0x3
)

// EncodeVariableLength32 implements variable_length_32_enc: it picks the
// smallest of {0, 1, 2, 4} bytes that still faithfully represents value
// given the previously transmitted old value.
func EncodeVariableLength32(old, value uint32) (VLIndicator, []byte) {
	if value == old {
		return VLUnchanged, nil
	}
	if value&0xffffff00 == old&0xffffff00 {
		return VLBits8, []byte{byte(value)}
	}
	if value&0xffff0000 == old&0xffff0000 {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(value))
		return VLBits16, b
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, value)
	return VLBits32, b
}

// EncodeStaticOrIrregular8 implements c_static_or_irreg for an 8-bit field:
// a changed flag plus the full byte when it differs from old.
func EncodeStaticOrIrregular8(old, value uint8) (changed bool, payload []byte) {
	if value == old {
		return false, nil
	}
	return true, []byte{value}
}

// EncodeStaticOrIrregular16 is EncodeStaticOrIrregular8 for a 16-bit field.
func EncodeStaticOrIrregular16(old, value uint16) (changed bool, payload []byte) {
	if value == old {
		return false, nil
	}
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, value)
	return true, b
}

// TSDiscriminator is the timestamp-LSB discriminator of §4.1.
type TSDiscriminator uint8

// The four timestamp-LSB discriminators, plus the lossy full-32-bit
// fallback, in order of increasing width.
const (
	TS7 TSDiscriminator = iota
	TS14
	TS21
	TS29
	TSFull
)

// Bits returns the number of value bits each discriminator carries.
func (d TSDiscriminator) Bits() uint8 {
	switch d {
	case TS7:
		return 7
	case TS14:
		return 14
	case TS21:
		return 21
	case TS29:
		return 29
	default:
		return 32
	}
}

func centered(k uint8) Window {
	return Window{K: k, P: int32(1) << (k - 1)}
}

// EncodeTimestampLSB implements the timestamp-LSB encoder of §4.1: the
// smallest discriminator whose window contains value relative to ref, or
// the lossy 32-bit fallback if none fits.
func EncodeTimestampLSB(ref, value uint32) (disc TSDiscriminator, bits uint32, lossy bool) {
	for _, d := range []TSDiscriminator{TS7, TS14, TS21, TS29} {
		w := centered(d.Bits())
		if InInterval(w, ref, value) {
			return d, Encode(w, value), false
		}
	}
	return TSFull, value, true
}

// SACKDisc is the discriminator of the SACK block field encoder.
type SACKDisc uint8

// The three SACK field widths of §4.1.
const (
	SACK15 SACKDisc = iota
	SACK22
	SACK30
)

func (d SACKDisc) bits() uint8 {
	switch d {
	case SACK15:
		return 15
	case SACK22:
		return 22
	default:
		return 30
	}
}

// EncodeSACKField picks the smallest of the three SACK discriminators that
// contains value relative to ref.
func EncodeSACKField(ref, value uint32) (SACKDisc, uint32) {
	for _, d := range []SACKDisc{SACK15, SACK22} {
		w := centered(d.bits())
		if InInterval(w, ref, value) {
			return d, Encode(w, value)
		}
	}
	w := centered(SACK30.bits())
	return SACK30, Encode(w, value)
}

// SACKBlockEncoded is one compressed SACK block: block_start encoded
// against a reference, then block_end encoded against block_start.
type SACKBlockEncoded struct {
	StartDisc SACKDisc
	StartBits uint32
	EndDisc   SACKDisc
	EndBits   uint32
}

// EncodeSACKBlock implements the SACK block encoder of §4.1.
func EncodeSACKBlock(ref, start, end uint32) SACKBlockEncoded {
	sd, sb := EncodeSACKField(ref, start)
	ed, eb := EncodeSACKField(start, end)
	return SACKBlockEncoded{StartDisc: sd, StartBits: sb, EndDisc: ed, EndBits: eb}
}

// rsfIndexTable maps the 3-bit RSF field (bit2=RST, bit1=SYN, bit0=FIN) to
// the 2-bit index of rsf_index_enc, per RFC 4996 §6.3.2.
var rsfIndexTable = map[uint8]uint8{
	0x0: 0, // none set
	0x1: 1, // FIN
	0x2: 2, // SYN
	0x4: 3, // RST
}

// RSFIndex implements rsf_index_enc. Combinations the RFC table does not
// name (more than one of RST/SYN/FIN set) fall back to the RST index,
// since RST takes priority over SYN/FIN in a real TCP flag set.
func RSFIndex(rsf uint8) uint8 {
	if idx, ok := rsfIndexTable[rsf&0x7]; ok {
		return idx
	}
	return rsfIndexTable[0x4]
}

func swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

// IPIDEncoded is the result of EncodeIPIDLSB.
type IPIDEncoded struct {
	Behavior classifier.Behavior
	Bits     uint16
	Width    uint8 // number of meaningful low bits in Bits; 0 for ZERO
}

// EncodeIPIDLSB implements c_ip_id_lsb / c_optional_ip_id_lsb: behavior
// drives the encoding entirely, per §4.1.
func EncodeIPIDLSB(behavior classifier.Behavior, w Window, lastIPID, ipID uint16) IPIDEncoded {
	switch behavior {
	case classifier.BehaviorSequential:
		delta := uint32(ipID) - uint32(lastIPID)
		return IPIDEncoded{Behavior: behavior, Bits: uint16(Encode(w, delta)), Width: w.K}
	case classifier.BehaviorSequentialSwapped:
		delta := uint32(swap16(ipID)) - uint32(swap16(lastIPID))
		return IPIDEncoded{Behavior: behavior, Bits: uint16(Encode(w, delta)), Width: w.K}
	case classifier.BehaviorZero:
		return IPIDEncoded{Behavior: behavior, Width: 0}
	default:
		return IPIDEncoded{Behavior: classifier.BehaviorRandom, Bits: ipID, Width: 16}
	}
}
