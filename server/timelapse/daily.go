package timelapse

import (
	"github.com/snaplapse/snaplapse/server/snapdb"
)

const minutesPerDay = 24 * 60

// minuteOfDayDistance is the circular distance between two times of day,
// measured in minutes on a 24 hour clock. 23:58 and 00:02 are 4 minutes
// apart, not 1436.
func minuteOfDayDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if minutesPerDay-d < d {
		d = minutesPerDay - d
	}
	return d
}

// MatchDaily returns the snapshots matching 'f' that were captured within
// daily.ToleranceMinutes of daily.Hour:daily.Minute on any day, in
// chronological order. The daily match applies before f.Limit/f.Offset, so
// pages are pages of matched snapshots.
func (e *Engine) MatchDaily(daily *DailySpec, f *Filter) ([]snapdb.Snapshot, error) {
	if err := daily.Validate(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	// Fetch without pagination; the daily filter shrinks the set first.
	unpaged := *f
	unpaged.Limit = 0
	unpaged.Offset = 0
	snaps, err := e.Query(&unpaged)
	if err != nil {
		return nil, err
	}

	target := daily.Hour*60 + daily.Minute
	matched := []snapdb.Snapshot{}
	for _, snap := range snaps {
		t := snap.CaptureTime.Get()
		if minuteOfDayDistance(t.Hour()*60+t.Minute(), target) <= daily.ToleranceMinutes {
			matched = append(matched, snap)
		}
	}

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []snapdb.Snapshot{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, nil
}
