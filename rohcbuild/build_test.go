package rohcbuild_test

import (
	"testing"

	"github.com/rohc-tcp/compressor/ipheader"
	"github.com/rohc-tcp/compressor/rohcbuild"
	"github.com/rohc-tcp/compressor/rohcctx"
)

func packet(t *testing.T, ipid uint16, seq, ack uint32, window uint16, flags byte) *ipheader.Packet {
	t.Helper()
	buf := make([]byte, 40)
	buf[0] = 0x45
	buf[4], buf[5] = byte(ipid>>8), byte(ipid)
	buf[8] = 64
	buf[9] = ipheader.ProtoTCP
	copy(buf[12:16], []byte{10, 0, 0, 1})
	copy(buf[16:20], []byte{10, 0, 0, 2})
	tcp := buf[20:40]
	tcp[0], tcp[1] = 0x04, 0xd2
	tcp[2], tcp[3] = 0x00, 0x50
	tcp[4], tcp[5], tcp[6], tcp[7] = byte(seq>>24), byte(seq>>16), byte(seq>>8), byte(seq)
	tcp[8], tcp[9], tcp[10], tcp[11] = byte(ack>>24), byte(ack>>16), byte(ack>>8), byte(ack)
	tcp[12] = 5 << 4
	tcp[13] = flags
	tcp[14], tcp[15] = byte(window>>8), byte(window)
	pkt, err := ipheader.Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return pkt
}

func TestBuildFirstPacketEmitsIRAndAdvancesToFO(t *testing.T) {
	pkt := packet(t, 100, 1000, 2000, 8192, 0x10)
	ctx := rohcctx.New(pkt, 7)

	dest := make([]byte, 256)
	res, err := rohcbuild.Build(ctx, pkt, dest)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Format != rohcbuild.FormatIR {
		t.Errorf("Format = %v, want IR", res.Format)
	}
	if ctx.State != rohcctx.StateFO {
		t.Errorf("State = %v, want FO", ctx.State)
	}
	if ctx.TCP.MSN != 8 {
		t.Errorf("MSN = %d, want 8", ctx.TCP.MSN)
	}
}

func TestBuildThreePacketsReachesSOAndPicksCOFormat(t *testing.T) {
	pkt1 := packet(t, 100, 1000, 2000, 8192, 0x10)
	ctx := rohcctx.New(pkt1, 0)
	dest := make([]byte, 256)

	if _, err := rohcbuild.Build(ctx, pkt1, dest); err != nil {
		t.Fatalf("Build 1: %v", err)
	}
	pkt2 := packet(t, 101, 2460, 2000, 8192, 0x10)
	if _, err := rohcbuild.Build(ctx, pkt2, dest); err != nil {
		t.Fatalf("Build 2: %v", err)
	}
	if ctx.State != rohcctx.StateSO {
		t.Fatalf("State = %v, want SO after two packets", ctx.State)
	}

	pkt3 := packet(t, 102, 3920, 2000, 8192, 0x10)
	res, err := rohcbuild.Build(ctx, pkt3, dest)
	if err != nil {
		t.Fatalf("Build 3: %v", err)
	}
	switch res.Format {
	case rohcbuild.FormatSeq1, rohcbuild.FormatSeq2, rohcbuild.FormatCoCommon:
	default:
		t.Errorf("Format = %v, want a sequential CO format (sequential IP-ID)", res.Format)
	}
	if res.Len == 0 {
		t.Error("Len = 0, want a nonzero emitted length")
	}
}

func TestBuildRejectsTooSmallDest(t *testing.T) {
	pkt := packet(t, 100, 1000, 2000, 8192, 0x10)
	ctx := rohcctx.New(pkt, 0)
	dest := make([]byte, 2)

	if _, err := rohcbuild.Build(ctx, pkt, dest); err != rohcbuild.ErrDestTooSmall {
		t.Errorf("got %v, want ErrDestTooSmall", err)
	}
}

func TestBuildForcesCoCommonWhenAckFlagChanges(t *testing.T) {
	pkt1 := packet(t, 100, 1000, 2000, 8192, 0x10) // ACK set
	ctx := rohcctx.New(pkt1, 0)
	dest := make([]byte, 256)
	rohcbuild.Build(ctx, pkt1, dest)
	rohcbuild.Build(ctx, pkt1, dest) // now in SO

	pkt3 := packet(t, 101, 1000, 2000, 8192, 0x00) // ACK flag cleared
	res, err := rohcbuild.Build(ctx, pkt3, dest)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Format != rohcbuild.FormatCoCommon {
		t.Errorf("Format = %v, want co_common when the ACK flag changes", res.Format)
	}
}
