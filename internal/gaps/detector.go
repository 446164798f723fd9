package gaps

// span is one contiguous run of missing bar times, bounds inclusive.
type span struct {
	start int64
	end   int64
}

// findGaps walks the expected bar grid from the first observed bar through
// end and returns maximal runs of missing bars. Coverage before the first
// observed bar is not reported: the listing time of an instrument cannot be
// derived from the candles table, so the walk anchors on observed data.
func findGaps(observed []int64, end, resolution int64) []span {
	if len(observed) == 0 || resolution <= 0 {
		return nil
	}

	seen := make(map[int64]bool, len(observed))
	for _, ts := range observed {
		seen[ts] = true
	}

	var gaps []span
	var open *span

	for t := observed[0]; t <= end; t += resolution {
		if seen[t] {
			if open != nil {
				gaps = append(gaps, *open)
				open = nil
			}
			continue
		}
		if open == nil {
			open = &span{start: t, end: t}
		} else {
			open.end = t
		}
	}
	if open != nil {
		gaps = append(gaps, *open)
	}

	return gaps
}

// alignDown rounds ts down to the resolution grid.
func alignDown(ts, resolution int64) int64 {
	if resolution <= 0 {
		return ts
	}
	return ts - ts%resolution
}
