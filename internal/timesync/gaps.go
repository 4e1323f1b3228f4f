package timesync

import "sort"

// DefaultGapFactor flags deltas more than one and a half nominal periods long.
const DefaultGapFactor = 1.5

// Gap is a hole between two consecutive timestamps of one stream.
type Gap struct {
	// Index is the position of the timestamp that ends the gap.
	Index int    `json:"index"`
	From  uint64 `json:"from"`
	To    uint64 `json:"to"`
	Delta uint64 `json:"delta"`
	// Missing estimates how many samples fell into the gap.
	Missing int `json:"missing"`
}

// DetectGaps flags each consecutive pair of ts whose delta exceeds
// factor*period. A zero period or fewer than two timestamps yields no gaps.
func DetectGaps(ts []uint64, period uint64, factor float64) []Gap {
	if period == 0 || len(ts) < 2 {
		return nil
	}
	if factor <= 0 {
		factor = DefaultGapFactor
	}
	limit := factor * float64(period)
	var gaps []Gap
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			continue
		}
		delta := ts[i] - ts[i-1]
		if float64(delta) <= limit {
			continue
		}
		missing := int((delta+period/2)/period) - 1
		if missing < 1 {
			missing = 1
		}
		gaps = append(gaps, Gap{Index: i, From: ts[i-1], To: ts[i], Delta: delta, Missing: missing})
	}
	return gaps
}

// EstimatePeriod returns the median positive delta of ts, or 0 when there is
// not enough data.
func EstimatePeriod(ts []uint64) uint64 {
	if len(ts) < 2 {
		return 0
	}
	deltas := make([]uint64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		if ts[i] > ts[i-1] {
			deltas = append(deltas, ts[i]-ts[i-1])
		}
	}
	if len(deltas) == 0 {
		return 0
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	return deltas[len(deltas)/2]
}
