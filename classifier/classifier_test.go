package classifier_test

import (
	"testing"

	"github.com/rohc-tcp/compressor/classifier"
)

func TestAdvanceIPIDBehaviorTotal(t *testing.T) {
	states := []classifier.Behavior{
		classifier.BehaviorUnknown,
		classifier.BehaviorSequential,
		classifier.BehaviorSequentialSwapped,
		classifier.BehaviorRandom,
		classifier.BehaviorZero,
	}
	// Every (state, observation) must land somewhere -- the function must
	// never panic and must always return one of the five named states.
	for _, s := range states {
		for _, ipid := range []uint16{0, 1, 0x0100, 0xffff, 500} {
			next := classifier.AdvanceIPIDBehavior(s, 499, ipid)
			found := false
			for _, want := range states {
				if next == want {
					found = true
				}
			}
			if !found {
				t.Errorf("AdvanceIPIDBehavior(%v, 499, %d) = %v, not a named state", s, ipid, next)
			}
		}
	}
}

func TestSequentialStaysSequential(t *testing.T) {
	next := classifier.AdvanceIPIDBehavior(classifier.BehaviorSequential, 100, 101)
	if next != classifier.BehaviorSequential {
		t.Errorf("got %v, want sequential", next)
	}
}

func TestSequentialBreaksToRandom(t *testing.T) {
	next := classifier.AdvanceIPIDBehavior(classifier.BehaviorSequential, 100, 250)
	if next != classifier.BehaviorRandom {
		t.Errorf("got %v, want random", next)
	}
}

func TestRandomDetectsSequentialSwapped(t *testing.T) {
	// swap(last)+1 == swap(ipid): last=0x0001 -> swap=0x0100, +1 = 0x0101,
	// swap back = 0x0101 swapped -> 0x0101. So ipid must swap to 0x0101.
	last := uint16(0x0001)
	ipid := uint16(0x0101) // chosen so swap(last)+1 == swap(ipid)
	next := classifier.AdvanceIPIDBehavior(classifier.BehaviorRandom, last, ipid)
	if next != classifier.BehaviorSequentialSwapped {
		t.Errorf("got %v, want sequential-swapped", next)
	}
}

func TestZeroTransitions(t *testing.T) {
	cases := []struct {
		ipid uint16
		want classifier.Behavior
	}{
		{0, classifier.BehaviorZero},
		{1, classifier.BehaviorSequential},
		{0x0100, classifier.BehaviorSequentialSwapped},
		{42, classifier.BehaviorRandom},
	}
	for _, c := range cases {
		got := classifier.AdvanceIPIDBehavior(classifier.BehaviorZero, 0, c.ipid)
		if got != c.want {
			t.Errorf("AdvanceIPIDBehavior(zero, 0, %d) = %v, want %v", c.ipid, got, c.want)
		}
	}
}

func TestUnknownNoChangeWhenIDRepeats(t *testing.T) {
	got := classifier.AdvanceIPIDBehavior(classifier.BehaviorUnknown, 55, 55)
	if got != classifier.BehaviorUnknown {
		t.Errorf("got %v, want unknown (no change)", got)
	}
}

func TestCheckContextMismatchOnChainLength(t *testing.T) {
	a := classifier.FlowShape{Versions: []uint8{4}}
	b := classifier.FlowShape{Versions: []uint8{4, 4}}
	if classifier.CheckContext(a, b) {
		t.Errorf("expected mismatch on differing chain length")
	}
}

func TestCheckContextMatchesIdenticalV4Flow(t *testing.T) {
	shape := classifier.FlowShape{
		Versions:  []uint8{4},
		SrcAddrs:  [][]byte{{10, 0, 0, 1}},
		DstAddrs:  [][]byte{{10, 0, 0, 2}},
		Protocols: []uint8{6},
		SrcPort:   1000,
		DstPort:   80,
	}
	if !classifier.CheckContext(shape, shape) {
		t.Errorf("expected identical shapes to match")
	}
}

func TestCheckContextRejectsPortMismatch(t *testing.T) {
	a := classifier.FlowShape{Versions: []uint8{4}, SrcPort: 1000, DstPort: 80}
	b := a
	b.DstPort = 443
	if classifier.CheckContext(a, b) {
		t.Errorf("expected port mismatch to reject")
	}
}

func TestCheckProfile(t *testing.T) {
	if !classifier.CheckProfile([]uint8{4}, true) {
		t.Errorf("expected plain v4+TCP to pass")
	}
	if classifier.CheckProfile([]uint8{4}, false) {
		t.Errorf("expected non-TCP to fail")
	}
	if classifier.CheckProfile([]uint8{5}, true) {
		t.Errorf("expected unknown IP version to fail")
	}
}
