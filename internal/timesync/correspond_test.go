package timesync

import (
	"testing"
)

func TestCorrespondNearestForward(t *testing.T) {
	base := []uint64{0, 100, 250}
	candidates := []uint64{5, 95, 240, 600}

	c := Correspond(base, candidates, DefaultTolerance)
	want := []int{0, 1, 2}
	for i, w := range want {
		if c.Matches[i] != w {
			t.Fatalf("ordinal %d: got %d want %d (all %v)", i, c.Matches[i], w, c.Matches)
		}
	}
	if c.Matched != 3 || c.Unmatched != 0 {
		t.Fatalf("unexpected counts %+v", c)
	}
}

func TestCorrespondRejectsBeyondTolerance(t *testing.T) {
	c := Correspond([]uint64{0, 480, 1000}, []uint64{500}, 30)
	if c.Matches[0] != NoMatch || c.Matches[2] != NoMatch {
		t.Fatalf("expected far ordinals rejected, got %v", c.Matches)
	}
	if idx, ok := c.Match(1); !ok || idx != 0 {
		t.Fatalf("expected ordinal 1 matched to 0, got %d %v", idx, ok)
	}
	if c.Matched != 1 || c.Unmatched != 2 {
		t.Fatalf("unexpected counts %+v", c)
	}
}

func TestCorrespondTieAndDuplicates(t *testing.T) {
	cases := []struct {
		name       string
		base       uint64
		candidates []uint64
		want       int
	}{
		{"tie prefers later", 10, []uint64{5, 15}, 1},
		{"duplicates before closer value", 6, []uint64{3, 3, 5}, 2},
		{"duplicates at nearest keep first", 7, []uint64{0, 7, 7}, 1},
		{"leading duplicates", 1, []uint64{1, 1, 9}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Correspond([]uint64{tc.base}, tc.candidates, DefaultTolerance)
			if c.Matches[0] != tc.want {
				t.Fatalf("got %d want %d", c.Matches[0], tc.want)
			}
		})
	}
}

func TestCorrespondEmptyAndSingleCandidate(t *testing.T) {
	c := Correspond([]uint64{1, 2, 3}, nil, DefaultTolerance)
	if c.Matched != 0 || c.Unmatched != 3 {
		t.Fatalf("expected all unmatched, got %+v", c)
	}
	for i := range c.Matches {
		if _, ok := c.Match(i); ok {
			t.Fatalf("ordinal %d unexpectedly matched", i)
		}
	}

	c = Correspond([]uint64{10, 20, 30}, []uint64{25}, DefaultTolerance)
	for i, m := range c.Matches {
		if m != 0 {
			t.Fatalf("ordinal %d: expected single candidate index 0, got %d", i, m)
		}
	}
}

func TestCorrespondMatchesBruteForceNearest(t *testing.T) {
	var base, candidates []uint64
	for i := uint64(0); i < 200; i++ {
		base = append(base, i*333_333+(i%7)*1_000)
	}
	for i := uint64(0); i < 450; i++ {
		if i%40 == 0 {
			continue
		}
		candidates = append(candidates, 50_000+i*147_000)
	}
	const tolerance = 60_000

	c := Correspond(base, candidates, tolerance)
	for i, b := range base {
		best := distance(b, candidates[0])
		for _, v := range candidates[1:] {
			if d := distance(b, v); d < best {
				best = d
			}
		}
		idx, ok := c.Match(i)
		if best > tolerance {
			if ok {
				t.Fatalf("ordinal %d matched beyond tolerance", i)
			}
			continue
		}
		if !ok {
			t.Fatalf("ordinal %d: expected match at distance %d", i, best)
		}
		if got := distance(b, candidates[idx]); got != best {
			t.Fatalf("ordinal %d: matched distance %d, nearest is %d", i, got, best)
		}
	}
}

func TestIdentity(t *testing.T) {
	c := Identity(3)
	if c.Matched != 3 || c.Matches[2] != 2 {
		t.Fatalf("unexpected identity %+v", c)
	}
}
