package models

import (
	"sort"
	"time"
)

// Sample is a single pressure reading. Sigma is the one-sigma measurement
// uncertainty in pressure units; zero means unknown.
type Sample struct {
	Time     time.Time
	Pressure float64
	Sigma    float64
}

// Series is an ordered pressure-vs-time sequence. After Normalize the
// timestamps are strictly increasing.
type Series []Sample

// TimeRange bounds a query or result window.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Normalize sorts samples chronologically and merges duplicate timestamps by
// averaging pressure (and sigma, when present). The input slice is not
// modified.
func Normalize(samples []Sample) Series {
	if len(samples) == 0 {
		return nil
	}

	sorted := append(Series(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	out := make(Series, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Time.Equal(sorted[i].Time) {
			j++
		}
		merged := sorted[i]
		if j > i+1 {
			sumP, sumS := 0.0, 0.0
			for k := i; k < j; k++ {
				sumP += sorted[k].Pressure
				sumS += sorted[k].Sigma
			}
			merged.Pressure = sumP / float64(j-i)
			merged.Sigma = sumS / float64(j-i)
		}
		out = append(out, merged)
		i = j
	}
	return out
}

// FilterAbove drops samples whose pressure is below the threshold. A
// non-positive threshold keeps every sample.
func (s Series) FilterAbove(threshold float64) Series {
	if threshold <= 0 {
		return s
	}
	out := make(Series, 0, len(s))
	for _, sample := range s {
		if sample.Pressure >= threshold {
			out = append(out, sample)
		}
	}
	return out
}

// Window returns the time range spanned by the series.
func (s Series) Window() TimeRange {
	if len(s) == 0 {
		return TimeRange{}
	}
	return TimeRange{Start: s[0].Time, End: s[len(s)-1].Time}
}
