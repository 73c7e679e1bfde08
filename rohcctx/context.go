// Package rohcctx is the per-flow Flow Context store of §3: the IP-layer
// chain records, the TCP record, the TCP options table, and the refresh
// state, plus the operations that create and advance a context from a
// parsed packet.
package rohcctx

import (
	"github.com/rohc-tcp/compressor/classifier"
	"github.com/rohc-tcp/compressor/ipheader"
	"github.com/rohc-tcp/compressor/tcpopts"
)

// Context is one flow's compressor state, owned exclusively by a single
// goroutine (§5) -- nothing here is safe for concurrent use.
type Context struct {
	CID     uint16
	IPChain []IPRecord
	TCP     TCPRecord
	Options *tcpopts.Table
	State   RefreshState
}

// New builds a fresh context from the first packet seen on a flow (§4.3).
// It does not validate that pkt is a fit for this profile -- that is
// CheckProfile's job, run by the caller before New is called. randSeed
// seeds the initial Master Sequence Number (MSN), a compressor-chosen
// quantity RFC 4996 leaves to the implementation.
func New(pkt *ipheader.Packet, randSeed uint16) *Context {
	ctx := &Context{
		Options: tcpopts.NewTable(),
		State:   StateIR,
	}
	for _, link := range pkt.Chain {
		ctx.IPChain = append(ctx.IPChain, newIPRecord(link))
	}
	ctx.TCP.OldHeader = pkt.TCP
	ctx.TCP.SeqNumber = pkt.TCP.Seq
	ctx.TCP.AckNumber = pkt.TCP.Ack
	ctx.TCP.LastSeq = pkt.TCP.Seq
	ctx.TCP.MSN = randSeed
	ctx.TCP.ECNUsed = pkt.TCP.Flags.ECE || pkt.TCP.Flags.CWR
	return ctx
}

func newIPRecord(link ipheader.Link) IPRecord {
	switch link.Kind {
	case ipheader.LinkIPv4:
		v4 := link.IPv4
		return IPRecord{
			Version:      4,
			SrcAddr:      append([]byte(nil), v4.Src.To4()...),
			DstAddr:      append([]byte(nil), v4.Dst.To4()...),
			Protocol:     v4.Protocol,
			DSCP:         v4.DSCP,
			ECN:          v4.ECN,
			TTL:          v4.TTL,
			DF:           v4.DF,
			LastIPID:     v4.IPID,
			Behavior:     classifier.BehaviorUnknown,
			LastBehavior: classifier.BehaviorUnknown,
		}
	case ipheader.LinkIPv6:
		v6 := link.IPv6
		return IPRecord{
			Version:   6,
			SrcAddr:   append([]byte(nil), v6.Src...),
			DstAddr:   append([]byte(nil), v6.Dst...),
			Protocol:  v6.NextHeader,
			DSCP:      v6.DSCP,
			ECN:       v6.ECN,
			TTL:       v6.HopLimit,
			FlowLabel: v6.FlowLabel,
			// v6 carries no IP-ID; Behavior is initialized to Random here
			// purely so every IPRecord has a defined, printable Behavior,
			// matching §4.3's "set v6 behavior to random" initialization.
			Behavior:     classifier.BehaviorRandom,
			LastBehavior: classifier.BehaviorRandom,
		}
	default: // ipheader.LinkExt
		ext := link.Ext
		return IPRecord{
			Version:       0,
			ExtKind:       ext.Kind,
			ExtNextHeader: ext.NextHeader,
			ExtValue:      append([]byte(nil), ext.Value...),
			Protocol:      ext.NextHeader,
		}
	}
}

// Shape projects the context's flow-identifying fields into a
// classifier.FlowShape, for comparison against a candidate packet's shape
// via classifier.CheckContext.
func (c *Context) Shape() classifier.FlowShape {
	shape := classifier.FlowShape{
		SrcPort: c.TCP.OldHeader.SrcPort,
		DstPort: c.TCP.OldHeader.DstPort,
	}
	for _, r := range c.IPChain {
		shape.Versions = append(shape.Versions, r.Version)
		shape.SrcAddrs = append(shape.SrcAddrs, r.SrcAddr)
		shape.DstAddrs = append(shape.DstAddrs, r.DstAddr)
		shape.Protocols = append(shape.Protocols, r.Protocol)
		shape.FlowLabels = append(shape.FlowLabels, r.FlowLabel)
		shape.ExtNextHeader = append(shape.ExtNextHeader, r.ExtNextHeader)
	}
	return shape
}

// ShapeFromPacket projects a freshly parsed packet's flow-identifying
// fields the same way Context.Shape does, so the two are comparable via
// classifier.CheckContext without either side needing the other's type.
func ShapeFromPacket(pkt *ipheader.Packet) classifier.FlowShape {
	shape := classifier.FlowShape{
		SrcPort: pkt.TCP.SrcPort,
		DstPort: pkt.TCP.DstPort,
	}
	for _, link := range pkt.Chain {
		switch link.Kind {
		case ipheader.LinkIPv4:
			shape.Versions = append(shape.Versions, 4)
			shape.SrcAddrs = append(shape.SrcAddrs, []byte(link.IPv4.Src.To4()))
			shape.DstAddrs = append(shape.DstAddrs, []byte(link.IPv4.Dst.To4()))
			shape.Protocols = append(shape.Protocols, link.IPv4.Protocol)
			shape.FlowLabels = append(shape.FlowLabels, 0)
			shape.ExtNextHeader = append(shape.ExtNextHeader, 0)
		case ipheader.LinkIPv6:
			shape.Versions = append(shape.Versions, 6)
			shape.SrcAddrs = append(shape.SrcAddrs, []byte(link.IPv6.Src))
			shape.DstAddrs = append(shape.DstAddrs, []byte(link.IPv6.Dst))
			shape.Protocols = append(shape.Protocols, 0)
			shape.FlowLabels = append(shape.FlowLabels, link.IPv6.FlowLabel)
			shape.ExtNextHeader = append(shape.ExtNextHeader, 0)
		default: // ipheader.LinkExt
			shape.Versions = append(shape.Versions, 0)
			shape.SrcAddrs = append(shape.SrcAddrs, nil)
			shape.DstAddrs = append(shape.DstAddrs, nil)
			shape.Protocols = append(shape.Protocols, 0)
			shape.FlowLabels = append(shape.FlowLabels, 0)
			shape.ExtNextHeader = append(shape.ExtNextHeader, link.Ext.NextHeader)
		}
	}
	return shape
}

// InnermostV4Index returns the index into IPChain of the innermost (last)
// IPv4 record, or -1 if the chain has none. IP-ID behavior tracking and
// IP-ID irregular/LSB encoding both apply only to this entry (§4.4).
func (c *Context) InnermostV4Index() int {
	for i := len(c.IPChain) - 1; i >= 0; i-- {
		if c.IPChain[i].Version == 4 {
			return i
		}
	}
	return -1
}

// AdvanceIPIDBehavior updates the innermost IPv4 record's behavior state
// given an observed ip_id, per §4.4. It is a no-op when the chain has no
// IPv4 entry.
func (c *Context) AdvanceIPIDBehavior(ipID uint16) {
	idx := c.InnermostV4Index()
	if idx < 0 {
		return
	}
	rec := &c.IPChain[idx]
	rec.LastBehavior = rec.Behavior
	rec.Behavior = classifier.AdvanceIPIDBehavior(rec.Behavior, rec.LastIPID, ipID)
	rec.LastIPID = ipID
}

// Advance applies the post-emission context update of §4.6: the Master
// Sequence Number increments, and old_tcphdr/seq/ack move to the values
// just compressed, so the next packet's irregular/W-LSB fields are
// computed against what was actually sent.
func (c *Context) Advance(pkt *ipheader.Packet) {
	c.TCP.MSN++
	if pkt.TCP.Seq != c.TCP.LastSeq {
		c.TCP.SeqChanges++
	}
	c.TCP.LastSeq = pkt.TCP.Seq
	c.TCP.OldHeader = pkt.TCP
	c.TCP.SeqNumber = pkt.TCP.Seq
	c.TCP.AckNumber = pkt.TCP.Ack
}
