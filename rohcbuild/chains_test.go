package rohcbuild

import (
	"encoding/binary"
	"testing"

	"github.com/rohc-tcp/compressor/ipheader"
	"github.com/rohc-tcp/compressor/rohcctx"
	"github.com/rohc-tcp/compressor/tcpopts"
)

func timestampOption(tsval, tsecr uint32) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], tsval)
	binary.BigEndian.PutUint32(b[4:8], tsecr)
	return b
}

// TestEncodeOptionValueCompressesTimestamp pins §8 scenario 4: a TIMESTAMP
// option must ride as a timestamp-LSB compressed field, not its raw 8
// bytes, once a close-enough reference is available.
func TestEncodeOptionValueCompressesTimestamp(t *testing.T) {
	opt := tcpopts.RawOption{Kind: tcpopts.KindTimestamp, Value: timestampOption(1010, 55)}
	got := encodeOptionValue(&rohcctx.Context{}, opt, 1000, 50)
	if len(got) >= len(opt.Value) {
		t.Errorf("encodeOptionValue(timestamp) = %d bytes, want fewer than the raw %d", len(got), len(opt.Value))
	}
	want, _ := tcpopts.EncodeIrregularTimestamp(1000, 1010, 50, 55)
	if string(got) != string(want) {
		t.Errorf("encodeOptionValue(timestamp) = %v, want %v", got, want)
	}
}

func TestEncodeOptionValueReformatsMSSAndWindowScale(t *testing.T) {
	mss := tcpopts.RawOption{Kind: tcpopts.KindMSS, Value: []byte{0x05, 0xb4}}
	if got, want := encodeOptionValue(&rohcctx.Context{}, mss, 0, 0), tcpopts.EncodeIrregularMSS(0x05b4); string(got) != string(want) {
		t.Errorf("encodeOptionValue(MSS) = %v, want %v", got, want)
	}

	ws := tcpopts.RawOption{Kind: tcpopts.KindWindowScale, Value: []byte{0x07}}
	if got, want := encodeOptionValue(&rohcctx.Context{}, ws, 0, 0), tcpopts.EncodeIrregularWindowScale(0x07); string(got) != string(want) {
		t.Errorf("encodeOptionValue(WindowScale) = %v, want %v", got, want)
	}
}

func TestEncodeOptionValueCompressesSACK(t *testing.T) {
	ctx := &rohcctx.Context{}
	ctx.TCP.AckNumber = 1000
	sackVal := make([]byte, 8)
	binary.BigEndian.PutUint32(sackVal[0:4], 1010)
	binary.BigEndian.PutUint32(sackVal[4:8], 1020)
	opt := tcpopts.RawOption{Kind: tcpopts.KindSACK, Value: sackVal}

	got := encodeOptionValue(ctx, opt, 0, 0)
	want := tcpopts.EncodeIrregularSACK(1000, []uint32{1010}, []uint32{1020})
	if string(got) != string(want) {
		t.Errorf("encodeOptionValue(SACK) = %v, want %v", got, want)
	}
}

func TestEncodeOptionValueFallsBackToRawForGenericKind(t *testing.T) {
	opt := tcpopts.RawOption{Kind: 14, Value: []byte{0xaa, 0xbb}}
	got := encodeOptionValue(&rohcctx.Context{}, opt, 0, 0)
	if string(got) != string(opt.Value) {
		t.Errorf("encodeOptionValue(generic) = %v, want raw value %v", got, opt.Value)
	}
}

func TestPreviousTimestampRecoversFromOldHeaderOptions(t *testing.T) {
	ctx := &rohcctx.Context{}
	ctx.TCP.OldHeader.Options = append([]byte{byte(tcpopts.KindTimestamp), 10}, timestampOption(42, 7)...)

	tsval, tsecr := previousTimestamp(ctx)
	if tsval != 42 || tsecr != 7 {
		t.Errorf("previousTimestamp = (%d, %d), want (42, 7)", tsval, tsecr)
	}
}

func TestPreviousTimestampDefaultsToZeroWithNoPriorOption(t *testing.T) {
	ctx := &rohcctx.Context{}
	tsval, tsecr := previousTimestamp(ctx)
	if tsval != 0 || tsecr != 0 {
		t.Errorf("previousTimestamp = (%d, %d), want (0, 0)", tsval, tsecr)
	}
}

// TestExtChainChangedDetectsValueMismatch pins §8 scenario 6: a changed
// IPv6 extension-header value must be detected so Build can force a
// refresh even though CheckContext still matches on chain shape alone.
func TestExtChainChangedDetectsValueMismatch(t *testing.T) {
	ctx := &rohcctx.Context{
		IPChain: []rohcctx.IPRecord{
			{Version: 6},
			{Version: 0, ExtKind: ipheader.ExtDestOpts, ExtValue: []byte{1, 2, 3, 4}},
		},
	}
	pkt := &ipheader.Packet{
		Chain: []ipheader.Link{
			{Kind: ipheader.LinkIPv6, IPv6: &ipheader.IPv6Info{}},
			{Kind: ipheader.LinkExt, Ext: &ipheader.ExtInfo{Kind: ipheader.ExtDestOpts, Value: []byte{1, 2, 3, 4}}},
		},
	}
	if extChainChanged(ctx, pkt) {
		t.Error("extChainChanged = true for an unchanged extension value")
	}

	pkt.Chain[1].Ext.Value = []byte{9, 9, 9, 9}
	if !extChainChanged(ctx, pkt) {
		t.Error("extChainChanged = false, want true when the extension value differs")
	}
}
