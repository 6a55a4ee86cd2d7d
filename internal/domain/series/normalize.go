package series

import (
	"sort"
	"time"
)

// Options adjusts how Normalize builds the displayed range.
type Options struct {
	// AnchorToToday extends the range through Today even when the latest
	// sample is older.
	AnchorToToday bool

	// TrimLeadingGaps drops gap days at the start of a windowed range.
	// When false, a window wider than the data is padded on the left with
	// gaps so the chart always spans the full window.
	TrimLeadingGaps bool

	// Today is the evaluation date. Zero means the current UTC date.
	Today time.Time
}

func (o Options) today() time.Time {
	if o.Today.IsZero() {
		return Day(time.Now().UTC())
	}
	return Day(o.Today)
}

// Normalize produces the dense, ascending, one-sample-per-day sequence for
// the given window.
//
// The range starts at the earliest sample and ends at the latest one (or
// today with AnchorToToday). A windowed range that keeps leading gaps is
// widened to the window's lookback; every missing day becomes a gap. The
// result is then cut to the window's last lookback days, and unless leading
// gaps are kept, any run of gaps at its start is removed.
//
// Several samples on the same date collapse to the last one given.
func Normalize(samples []Sample, w Window, opts Options) []Sample {
	if len(samples) == 0 {
		return []Sample{}
	}

	known := collapse(samples)
	start := known[0].Date
	end := known[len(known)-1].Date

	if opts.AnchorToToday {
		if today := opts.today(); today.After(end) {
			end = today
		}
	}

	lookback, windowed := w.LookbackDays()
	if windowed && !opts.TrimLeadingGaps {
		if periodStart := end.AddDate(0, 0, -lookback); periodStart.Before(start) {
			start = periodStart
		}
	}

	out := fill(known, start, end)
	if !windowed {
		return out
	}

	if len(out) > lookback {
		out = out[len(out)-lookback:]
	}
	if opts.TrimLeadingGaps {
		i := 0
		for i < len(out) && out[i].IsGap() {
			i++
		}
		out = out[i:]
	}
	return out
}

// collapse returns the samples sorted ascending by calendar day with one
// entry per day; for repeated days the last sample in input order wins.
func collapse(samples []Sample) []Sample {
	sorted := make([]Sample, len(samples))
	for i, s := range samples {
		sorted[i] = Sample{Date: Day(s.Date), Value: s.Value}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := sorted[:0]
	for _, s := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(s.Date) {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}
	return out
}

// fill emits one sample for every day in [start, end], taking values from
// known (sorted, unique, within the range) and gaps elsewhere.
func fill(known []Sample, start, end time.Time) []Sample {
	days := int(end.Sub(start).Hours()/24) + 1
	out := make([]Sample, 0, days)

	j := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for j < len(known) && known[j].Date.Before(d) {
			j++
		}
		if j < len(known) && known[j].Date.Equal(d) {
			out = append(out, known[j])
			continue
		}
		out = append(out, Sample{Date: d})
	}
	return out
}
