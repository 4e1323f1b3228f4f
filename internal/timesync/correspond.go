package timesync

// DefaultTolerance is the largest accepted distance between a base timestamp
// and its match, in device ticks (100ns), i.e. ten seconds.
const DefaultTolerance uint64 = 100_000_000

// NoMatch marks a base ordinal without a corresponding candidate.
const NoMatch = -1

// Correspondence maps every base ordinal to a candidate index or NoMatch.
type Correspondence struct {
	Matches   []int
	Matched   int
	Unmatched int
}

// Match returns the candidate index for ordinal i.
func (c Correspondence) Match(i int) (int, bool) {
	if i < 0 || i >= len(c.Matches) || c.Matches[i] == NoMatch {
		return 0, false
	}
	return c.Matches[i], true
}

// Identity returns the correspondence of a stream with itself.
func Identity(n int) Correspondence {
	c := Correspondence{Matches: make([]int, n), Matched: n}
	for i := range c.Matches {
		c.Matches[i] = i
	}
	return c
}

// Correspond finds, for each base timestamp, the nearest candidate timestamp.
// Both slices must be sorted ascending. The scan resumes from the previous
// match, so the whole pass is linear in len(base)+len(candidates).
//
// On equal distance to two distinct candidates the later one wins. Repeated
// candidate values resolve to the first index holding that value. A nearest
// candidate further than tolerance away yields NoMatch.
func Correspond(base, candidates []uint64, tolerance uint64) Correspondence {
	c := Correspondence{Matches: make([]int, len(base))}
	values, firstIndex := uniqueValues(candidates)

	j := 0
	for i, b := range base {
		if len(values) == 0 {
			c.Matches[i] = NoMatch
			c.Unmatched++
			continue
		}
		best := distance(b, values[j])
		for j+1 < len(values) {
			d := distance(b, values[j+1])
			if d > best {
				break
			}
			best = d
			j++
		}
		if best > tolerance {
			c.Matches[i] = NoMatch
			c.Unmatched++
			continue
		}
		c.Matches[i] = firstIndex[j]
		c.Matched++
	}
	return c
}

// uniqueValues collapses runs of equal candidates, remembering where each
// run starts in the original slice.
func uniqueValues(candidates []uint64) ([]uint64, []int) {
	values := make([]uint64, 0, len(candidates))
	first := make([]int, 0, len(candidates))
	for i, v := range candidates {
		if len(values) > 0 && values[len(values)-1] == v {
			continue
		}
		values = append(values, v)
		first = append(first, i)
	}
	return values, first
}

func distance(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
