package tcpopts

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidOption is returned by ParseOptions when the options area is
// malformed: a truncated option, a length outside [2, remaining], or a
// kind greater than 15 (§4.5: "kinds > 15 are rejected as invalid and
// terminate the walk").
var ErrInvalidOption = errors.New("tcpopts: invalid option kind or length")

// RawOption is one option as found while walking the TCP options area,
// before any table processing.
type RawOption struct {
	Kind  Kind
	Value []byte // empty for EOL/NOP
}

// ParseOptions walks raw (the TCP header's options bytes) and returns the
// options found, in wire order, stopping at EOL or the end of raw.
func ParseOptions(raw []byte) ([]RawOption, error) {
	var opts []RawOption
	i := 0
	for i < len(raw) {
		kind := Kind(raw[i])
		if kind == KindEOL {
			break
		}
		if kind == KindNOP {
			opts = append(opts, RawOption{Kind: kind})
			i++
			continue
		}
		if uint8(kind) > 15 {
			return nil, ErrInvalidOption
		}
		if i+1 >= len(raw) {
			return nil, ErrInvalidOption
		}
		length := int(raw[i+1])
		if length < 2 || i+length > len(raw) {
			return nil, ErrInvalidOption
		}
		opts = append(opts, RawOption{Kind: kind, Value: append([]byte(nil), raw[i+2:i+length]...)})
		i += length
	}
	return opts, nil
}

// ParseSACKBlocks splits a SACK option's raw value into its left/right
// edge pairs (RFC 2018: a run of 4-byte-left, 4-byte-right edges). A
// trailing partial block (fewer than 8 bytes left) is ignored.
func ParseSACKBlocks(value []byte) (starts, ends []uint32) {
	for i := 0; i+8 <= len(value); i += 8 {
		starts = append(starts, binary.BigEndian.Uint32(value[i:i+4]))
		ends = append(ends, binary.BigEndian.Uint32(value[i+4:i+8]))
	}
	return starts, ends
}
