package series

import "math"

// Summary describes the displayed series: the first and last measured
// values, the change between them, and the value range.
type Summary struct {
	First        float64  `json:"first"`
	Last         float64  `json:"last"`
	DeltaPercent *float64 `json:"deltaPercent"`
	Min          float64  `json:"min"`
	Max          float64  `json:"max"`
}

// Summarize computes the Summary over the non-gap samples of a normalized
// series. ok is false when the series holds no values at all.
func Summarize(s []Sample) (sum Summary, ok bool) {
	for _, p := range s {
		if p.Value == nil {
			continue
		}
		v := *p.Value
		if !ok {
			sum = Summary{First: v, Last: v, Min: v, Max: v}
			ok = true
			continue
		}
		sum.Last = v
		if v < sum.Min {
			sum.Min = v
		}
		if v > sum.Max {
			sum.Max = v
		}
	}
	if ok {
		sum.DeltaPercent = DeltaPercent(sum.First, sum.Last)
	}
	return sum, ok
}

// DeltaPercent is the percent change from first to last, rounded up at the
// hundredths. It is nil when first is zero.
func DeltaPercent(first, last float64) *float64 {
	if first == 0 {
		return nil
	}
	delta := (last - first) / first
	delta = delta * 100
	delta = math.Ceil(delta*100) / 100
	return &delta
}
