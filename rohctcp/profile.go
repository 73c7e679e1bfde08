// Package rohctcp wires together ipheader, classifier, rohcctx, tcpopts
// and rohcbuild behind the five profile entry points of §6: Create,
// CheckProfile, CheckContext, Encode, Destroy.
package rohctcp

import (
	"errors"

	"github.com/rohc-tcp/compressor/classifier"
	"github.com/rohc-tcp/compressor/ipheader"
	"github.com/rohc-tcp/compressor/rohcbuild"
	"github.com/rohc-tcp/compressor/rohcctx"
	"github.com/rohc-tcp/compressor/rohcmetrics"
)

// ErrHeadersNotSmallerThanPacket is the §4.3 step-5 precondition failure:
// the header chain consumes the whole packet, leaving no payload.
var ErrHeadersNotSmallerThanPacket = errors.New("rohctcp: header chain is not strictly smaller than the packet")

// MatchResult is CheckContext's three-way verdict.
type MatchResult int

const (
	// MatchBelongs means the packet can be compressed against this context.
	MatchBelongs MatchResult = 1
	// MatchDoesNotBelong means the packet is a valid TCP/IP packet for this
	// profile but not on this context's flow; the caller should look for
	// (or create) a different context.
	MatchDoesNotBelong MatchResult = 0
	// MatchProfileCannotCompress means the packet is not a fit for this
	// profile at all (see CheckProfile).
	MatchProfileCannotCompress MatchResult = -1
)

// RandSource supplies the 16-bit seed for a new context's MSN. The
// framework's random-number callback (§4.7) satisfies this trivially.
type RandSource func() uint16

// Create implements the create(context, first_ip_packet) entry point of
// §6/§4.3. buf is a raw IP+TCP packet. It fails (without allocating a
// context) on anything Parse rejects, or when the header chain does not
// leave a strictly positive payload.
func Create(buf []byte, rnd RandSource) (*rohcctx.Context, error) {
	pkt, err := ipheader.Parse(buf)
	if err != nil {
		rohcmetrics.PacketsRejected.WithLabelValues("shape").Inc()
		return nil, err
	}
	if pkt.HeaderLen >= pkt.TotalLen {
		rohcmetrics.PacketsRejected.WithLabelValues("shape").Inc()
		return nil, ErrHeadersNotSmallerThanPacket
	}
	ctx := rohcctx.New(pkt, rnd())
	rohcmetrics.ContextsActive.Inc()
	return ctx, nil
}

// CheckProfile implements the stateless check_profile entry point of §6:
// whether buf, once parsed, is a shape this profile can compress at all.
func CheckProfile(buf []byte) bool {
	pkt, err := ipheader.Parse(buf)
	if err != nil {
		return false
	}
	return checkProfileParsed(pkt)
}

func checkProfileParsed(pkt *ipheader.Packet) bool {
	var versions []uint8
	for _, link := range pkt.Chain {
		switch link.Kind {
		case ipheader.LinkIPv4:
			versions = append(versions, 4)
		case ipheader.LinkIPv6:
			versions = append(versions, 6)
		}
	}
	return classifier.CheckProfile(versions, true)
}

// CheckContext implements the check_context entry point of §6: whether
// buf belongs to ctx's flow, is a valid-but-different flow, or is not a
// fit for this profile at all.
func CheckContext(ctx *rohcctx.Context, buf []byte) (MatchResult, *ipheader.Packet) {
	pkt, err := ipheader.Parse(buf)
	if err != nil || !checkProfileParsed(pkt) {
		return MatchProfileCannotCompress, nil
	}
	if classifier.CheckContext(ctx.Shape(), rohcctx.ShapeFromPacket(pkt)) {
		return MatchBelongs, pkt
	}
	return MatchDoesNotBelong, pkt
}

// Encode implements the encode entry point of §6: build the compressed
// packet for pkt against ctx into dest, advancing ctx on success.
func Encode(ctx *rohcctx.Context, pkt *ipheader.Packet, dest []byte) (rohcLen int, format rohcbuild.Format, payloadOffset int, err error) {
	res, err := rohcbuild.Build(ctx, pkt, dest)
	if err != nil {
		rohcmetrics.PacketsRejected.WithLabelValues("capacity").Inc()
		return 0, 0, 0, err
	}
	rohcmetrics.FormatSelected.WithLabelValues(res.Format.String()).Inc()
	return res.Len, res.Format, res.PayloadOffset, nil
}

// Destroy implements the destroy entry point of §6: release a context
// the framework is tearing down. ctx itself is left to the garbage
// collector; only the live-context gauge needs an explicit update.
func Destroy(ctx *rohcctx.Context) {
	rohcmetrics.ContextsActive.Dec()
}
