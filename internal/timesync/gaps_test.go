package timesync

import "testing"

func TestDetectGaps(t *testing.T) {
	const p = 333_333
	gaps := DetectGaps([]uint64{0, p, 3 * p, 4 * p}, p, DefaultGapFactor)
	if len(gaps) != 1 {
		t.Fatalf("expected one gap, got %v", gaps)
	}
	g := gaps[0]
	if g.Index != 2 || g.From != p || g.To != 3*p || g.Delta != 2*p || g.Missing != 1 {
		t.Fatalf("unexpected gap %+v", g)
	}
}

func TestDetectGapsThreshold(t *testing.T) {
	// 1.5 periods exactly is not a gap.
	if gaps := DetectGaps([]uint64{0, 150}, 100, 1.5); len(gaps) != 0 {
		t.Fatalf("expected no gap at threshold, got %v", gaps)
	}
	if gaps := DetectGaps([]uint64{0, 151}, 100, 1.5); len(gaps) != 1 {
		t.Fatalf("expected gap above threshold, got %v", gaps)
	}
	if gaps := DetectGaps([]uint64{0, 1000}, 0, 1.5); gaps != nil {
		t.Fatalf("expected nil for zero period, got %v", gaps)
	}
	if gaps := DetectGaps([]uint64{0}, 100, 1.5); gaps != nil {
		t.Fatalf("expected nil for single sample, got %v", gaps)
	}
}

func TestDetectGapsEstimatesMissingSamples(t *testing.T) {
	gaps := DetectGaps([]uint64{0, 100, 600}, 100, 1.5)
	if len(gaps) != 1 || gaps[0].Missing != 4 {
		t.Fatalf("expected four missing samples, got %+v", gaps)
	}
}

func TestEstimatePeriod(t *testing.T) {
	cases := []struct {
		ts   []uint64
		want uint64
	}{
		{nil, 0},
		{[]uint64{5}, 0},
		{[]uint64{0, 10, 20, 40}, 10},
		{[]uint64{0, 10, 30, 60, 100}, 30},
	}
	for _, tc := range cases {
		if got := EstimatePeriod(tc.ts); got != tc.want {
			t.Fatalf("EstimatePeriod(%v) = %d, want %d", tc.ts, got, tc.want)
		}
	}
}
