package timelapse

import (
	"fmt"
	"time"

	"github.com/snaplapse/snaplapse/pkg/dbh"
	"github.com/snaplapse/snaplapse/server/snapdb"
)

// Filter selects snapshots. All fields are optional and combine with AND
// semantics. The zero Filter matches everything.
type Filter struct {
	CategoryID  int64     `json:"categoryID,omitempty"`  // expanded to its descendant closure before querying
	SnapshotIDs []int64   `json:"snapshotIDs,omitempty"` // explicit id list; unknown ids are skipped, ordering stays chronological
	StartTime   time.Time `json:"startTime,omitzero"`    // inclusive
	EndTime     time.Time `json:"endTime,omitzero"`      // inclusive
	Tag         string    `json:"tag,omitempty"`         // case-insensitive substring match
	CameraID    string    `json:"cameraID,omitempty"`
	Project     string    `json:"project,omitempty"`
	Source      string    `json:"source,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	Offset      int       `json:"offset,omitempty"`
}

func (f *Filter) Validate() error {
	if !f.StartTime.IsZero() && !f.EndTime.IsZero() && f.StartTime.After(f.EndTime) {
		return fmt.Errorf("%w: start time %v is after end time %v", ErrInvalidFilter, f.StartTime, f.EndTime)
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}
	if f.Offset < 0 {
		return fmt.Errorf("%w: negative offset", ErrInvalidFilter)
	}
	return nil
}

// DailySpec selects snapshots captured at approximately the same time of day.
type DailySpec struct {
	Hour             int `json:"hour"`
	Minute           int `json:"minute"`
	ToleranceMinutes int `json:"toleranceMinutes"`
}

func (d *DailySpec) Validate() error {
	if d.Hour < 0 || d.Hour > 23 {
		return fmt.Errorf("%w: hour %v out of range 0-23", ErrInvalidFilter, d.Hour)
	}
	if d.Minute < 0 || d.Minute > 59 {
		return fmt.Errorf("%w: minute %v out of range 0-59", ErrInvalidFilter, d.Minute)
	}
	if d.ToleranceMinutes < 0 {
		return fmt.Errorf("%w: negative tolerance", ErrInvalidFilter)
	}
	return nil
}

// Params converts a filter (plus optional daily spec) to the form persisted
// on a VideoGeneration record.
func (f *Filter) Params(daily *DailySpec) snapdb.GenerationParams {
	p := snapdb.GenerationParams{
		CategoryID:  f.CategoryID,
		SnapshotIDs: f.SnapshotIDs,
		StartTime:   dbh.MakeIntTime(f.StartTime),
		EndTime:     dbh.MakeIntTime(f.EndTime),
		Tag:         f.Tag,
		CameraID:    f.CameraID,
		Project:     f.Project,
		Source:      f.Source,
		Limit:       f.Limit,
		Offset:      f.Offset,
	}
	if daily != nil {
		p.Daily = &snapdb.DailyParams{
			Hour:             daily.Hour,
			Minute:           daily.Minute,
			ToleranceMinutes: daily.ToleranceMinutes,
		}
	}
	return p
}

// FilterFromParams is the inverse of Params. Re-running the returned filter
// (and daily spec, if any) reproduces the ordered sequence that a completed
// generation record was built from.
func FilterFromParams(p snapdb.GenerationParams) (Filter, *DailySpec) {
	f := Filter{
		CategoryID:  p.CategoryID,
		SnapshotIDs: p.SnapshotIDs,
		StartTime:   p.StartTime.Get(),
		EndTime:     p.EndTime.Get(),
		Tag:         p.Tag,
		CameraID:    p.CameraID,
		Project:     p.Project,
		Source:      p.Source,
		Limit:       p.Limit,
		Offset:      p.Offset,
	}
	var daily *DailySpec
	if p.Daily != nil {
		daily = &DailySpec{
			Hour:             p.Daily.Hour,
			Minute:           p.Daily.Minute,
			ToleranceMinutes: p.Daily.ToleranceMinutes,
		}
	}
	return f, daily
}
