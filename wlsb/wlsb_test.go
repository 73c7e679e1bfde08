package wlsb_test

import (
	"testing"

	"github.com/rohc-tcp/compressor/classifier"
	"github.com/rohc-tcp/compressor/wlsb"
)

func TestInIntervalAndEncodeRoundTrip(t *testing.T) {
	w := wlsb.Window{K: 8, P: 64}
	ref := uint32(1000)
	for _, value := range []uint32{1000, 1001, 1030, 963, 1100} {
		if !wlsb.InInterval(w, ref, value) {
			t.Fatalf("value %d unexpectedly outside interval", value)
		}
		bits := wlsb.Encode(w, value)
		got := wlsb.Decode(w, ref, bits)
		if got != value {
			t.Errorf("Decode(Encode(%d)) = %d, want %d", value, got, value)
		}
	}
}

func TestInIntervalWraparound(t *testing.T) {
	w := wlsb.Window{K: 4, P: 2}
	ref := uint32(0)
	// lower = ref - p = -2 mod 2^32 = 0xfffffffe
	if !wlsb.InInterval(w, ref, 0xfffffffe) {
		t.Errorf("expected wraparound value to be in interval")
	}
	if wlsb.InInterval(w, ref, 100) {
		t.Errorf("expected out-of-window value to be rejected")
	}
}

func TestScale(t *testing.T) {
	s := wlsb.Scale(3000, 1460)
	if s.Value != 2 || s.Residue != 80 {
		t.Errorf("Scale(3000, 1460) = %+v, want Value=2 Residue=80", s)
	}
	s0 := wlsb.Scale(42, 0)
	if s0.Residue != 42 || s0.Value != 0 {
		t.Errorf("Scale with zero factor = %+v, want undefined scaled", s0)
	}
}

func TestEncodeVariableLength32(t *testing.T) {
	cases := []struct {
		old, value uint32
		wantInd    wlsb.VLIndicator
		wantLen    int
	}{
		{100, 100, wlsb.VLUnchanged, 0},
		{0x00000010, 0x00000020, wlsb.VLBits8, 1},
		{0x00010000, 0x00010100, wlsb.VLBits16, 2},
		{0x00000000, 0xffffffff, wlsb.VLBits32, 4},
	}
	for _, c := range cases {
		ind, payload := wlsb.EncodeVariableLength32(c.old, c.value)
		if ind != c.wantInd || len(payload) != c.wantLen {
			t.Errorf("EncodeVariableLength32(%#x,%#x) = (%v,%d bytes), want (%v,%d bytes)",
				c.old, c.value, ind, len(payload), c.wantInd, c.wantLen)
		}
	}
}

func TestEncodeStaticOrIrregular(t *testing.T) {
	if changed, _ := wlsb.EncodeStaticOrIrregular8(5, 5); changed {
		t.Errorf("expected unchanged")
	}
	if changed, payload := wlsb.EncodeStaticOrIrregular8(5, 6); !changed || payload[0] != 6 {
		t.Errorf("expected changed with payload [6], got %v %v", changed, payload)
	}
	if changed, payload := wlsb.EncodeStaticOrIrregular16(100, 200); !changed || len(payload) != 2 {
		t.Errorf("expected 2-byte changed payload, got %v %v", changed, payload)
	}
}

func TestEncodeTimestampLSBPicksSmallest(t *testing.T) {
	ref := uint32(100000)
	disc, _, lossy := wlsb.EncodeTimestampLSB(ref, ref+1)
	if disc != wlsb.TS7 || lossy {
		t.Errorf("small delta should pick TS7, got %v lossy=%v", disc, lossy)
	}
	disc, _, lossy = wlsb.EncodeTimestampLSB(ref, ref+1_000_000_000)
	if disc != wlsb.TSFull || !lossy {
		t.Errorf("huge delta should fall back to TSFull lossy, got %v lossy=%v", disc, lossy)
	}
}

func TestEncodeSACKBlock(t *testing.T) {
	blk := wlsb.EncodeSACKBlock(1000, 1010, 1020)
	if blk.StartDisc != wlsb.SACK15 || blk.EndDisc != wlsb.SACK15 {
		t.Errorf("expected small deltas to use SACK15, got %+v", blk)
	}
}

func TestRSFIndex(t *testing.T) {
	if wlsb.RSFIndex(0) != 0 {
		t.Errorf("none should map to index 0")
	}
	if wlsb.RSFIndex(0x1) != 1 {
		t.Errorf("FIN should map to index 1")
	}
	if wlsb.RSFIndex(0x2) != 2 {
		t.Errorf("SYN should map to index 2")
	}
	if wlsb.RSFIndex(0x4) != 3 {
		t.Errorf("RST should map to index 3")
	}
}

func TestEncodeIPIDLSBBehaviors(t *testing.T) {
	w := wlsb.Window{K: 8, P: 16}
	seq := wlsb.EncodeIPIDLSB(classifier.BehaviorSequential, w, 100, 101)
	if seq.Width != 8 {
		t.Errorf("sequential should carry %d bits, got %d", w.K, seq.Width)
	}
	zero := wlsb.EncodeIPIDLSB(classifier.BehaviorZero, w, 0, 0)
	if zero.Width != 0 {
		t.Errorf("zero behavior should carry 0 bits, got %d", zero.Width)
	}
	rnd := wlsb.EncodeIPIDLSB(classifier.BehaviorRandom, w, 100, 5000)
	if rnd.Width != 16 || rnd.Bits != 5000 {
		t.Errorf("random behavior should carry the full 16-bit field, got %+v", rnd)
	}
}
