// Package classifier implements the profile/context gate and the IPv4
// IP-ID behavior state machine of §4.4.
//
// Following the teacher's tcp.State pattern (an int-backed enum with a
// name table and a Stringer), Behavior is a small closed enum; unlike
// tcp.State it also carries the transition logic, since that logic is
// pure and has no business living inside the context store.
package classifier

import "fmt"

// Behavior is the IP-ID behavior classification of an IPv4 header's
// innermost occurrence in a flow, per §3/§4.4.
type Behavior int

// The five IP-ID behaviors §4.4 distinguishes.
const (
	BehaviorUnknown Behavior = iota
	BehaviorSequential
	BehaviorSequentialSwapped
	BehaviorRandom
	BehaviorZero
)

var behaviorName = map[Behavior]string{
	BehaviorUnknown:           "unknown",
	BehaviorSequential:        "sequential",
	BehaviorSequentialSwapped: "sequential-swapped",
	BehaviorRandom:            "random",
	BehaviorZero:              "zero",
}

func (b Behavior) String() string {
	if s, ok := behaviorName[b]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN_BEHAVIOR_%d", int(b))
}

func swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

// AdvanceIPIDBehavior implements the total transition function of §4.4:
// every (current, observation) pair lands in exactly one next state.
func AdvanceIPIDBehavior(current Behavior, lastIPID, ipID uint16) Behavior {
	switch current {
	case BehaviorSequential:
		if lastIPID+1 == ipID {
			return BehaviorSequential
		}
		return BehaviorRandom

	case BehaviorSequentialSwapped:
		if swap16(lastIPID)+1 == swap16(ipID) {
			return BehaviorSequentialSwapped
		}
		return BehaviorRandom

	case BehaviorRandom:
		switch {
		case lastIPID+1 == ipID:
			return BehaviorSequential
		case swap16(lastIPID)+1 == swap16(ipID):
			return BehaviorSequentialSwapped
		case ipID == 0:
			return BehaviorZero
		default:
			return BehaviorRandom
		}

	case BehaviorZero:
		switch ipID {
		case 0:
			return BehaviorZero
		case 0x0001:
			return BehaviorSequential
		case 0x0100:
			return BehaviorSequentialSwapped
		default:
			return BehaviorRandom
		}

	case BehaviorUnknown:
		switch {
		case ipID == 0:
			return BehaviorZero
		case lastIPID+1 == ipID:
			return BehaviorSequential
		case swap16(lastIPID)+1 == swap16(ipID):
			return BehaviorSequentialSwapped
		case lastIPID == ipID:
			return BehaviorUnknown
		default:
			return BehaviorRandom
		}

	default:
		return BehaviorRandom
	}
}

// FlowShape is the subset of a packet's IP-layer chain that identifies
// which flow it belongs to, used by CheckContext. Building one from an
// ipheader.Packet or from a stored context is the caller's job -- this
// package stays free of a dependency on either to avoid an import cycle
// between the context store (which needs Behavior) and the packet parser.
type FlowShape struct {
	// Versions holds one entry per IP-layer chain entry (v4 or v6); an
	// extension-header chain entry is represented by its own Versions[i]
	// == 0 with ExtNextHeader[i] set, so the lengths of the two chains
	// must match for a shape to be considered.
	Versions      []uint8
	SrcAddrs      [][]byte
	DstAddrs      [][]byte
	Protocols     []uint8
	FlowLabels    []uint32
	ExtNextHeader []uint8
	SrcPort       uint16
	DstPort       uint16
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

// CheckContext reports whether candidate could be compressed against an
// existing context whose identifying fields are ctx, per §4.4: same chain
// length, matching version/addresses/protocol for v4 links, matching
// addresses/flow-label/next-header sequence for v6 links, and matching TCP
// ports. It has no side effects.
func CheckContext(ctx, candidate FlowShape) bool {
	if len(ctx.Versions) != len(candidate.Versions) {
		return false
	}
	if ctx.SrcPort != candidate.SrcPort || ctx.DstPort != candidate.DstPort {
		return false
	}
	for i := range ctx.Versions {
		if ctx.Versions[i] != candidate.Versions[i] {
			return false
		}
		switch ctx.Versions[i] {
		case 4:
			if !bytesEqual(ctx.SrcAddrs[i], candidate.SrcAddrs[i]) ||
				!bytesEqual(ctx.DstAddrs[i], candidate.DstAddrs[i]) ||
				ctx.Protocols[i] != candidate.Protocols[i] {
				return false
			}
		case 6:
			if !bytesEqual(ctx.SrcAddrs[i], candidate.SrcAddrs[i]) ||
				!bytesEqual(ctx.DstAddrs[i], candidate.DstAddrs[i]) ||
				ctx.FlowLabels[i] != candidate.FlowLabels[i] {
				return false
			}
		default: // extension header entry
			if ctx.ExtNextHeader[i] != candidate.ExtNextHeader[i] {
				return false
			}
		}
	}
	return true
}

// CheckProfile is the stateless profile check: the terminating protocol
// must be TCP and every IP-layer link in the chain must be IPv4 (not
// fragmented, no options -- enforced upstream by ipheader.Parse) or IPv6.
// versions holds one entry per IP-layer link (extension-header entries are
// not included, since they carry no version of their own).
func CheckProfile(versions []uint8, transportIsTCP bool) bool {
	if !transportIsTCP {
		return false
	}
	for _, v := range versions {
		if v != 4 && v != 6 {
			return false
		}
	}
	return true
}
