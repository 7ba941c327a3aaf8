package timelapse

import (
	"github.com/snaplapse/snaplapse/server/snapdb"
)

// Query is the single query planner that every caller funnels through:
// pagination pages, the daily matcher and video generation all see the same
// deterministic ordering (capture time ascending, ties by id ascending).
func (e *Engine) Query(f *Filter) ([]snapdb.Snapshot, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	q, err := e.planQuery(f)
	if err != nil {
		return nil, err
	}
	return e.db.QuerySnapshots(q)
}

// Count returns the number of snapshots matching the filter, ignoring
// limit/offset. Used for pagination totals.
func (e *Engine) Count(f *Filter) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	q, err := e.planQuery(f)
	if err != nil {
		return 0, err
	}
	return e.db.CountSnapshots(q)
}

func (e *Engine) planQuery(f *Filter) (*snapdb.SnapshotQuery, error) {
	q := &snapdb.SnapshotQuery{
		IDs:       f.SnapshotIDs,
		StartTime: f.StartTime,
		EndTime:   f.EndTime,
		Tag:       f.Tag,
		CameraID:  f.CameraID,
		Project:   f.Project,
		Source:    f.Source,
		Limit:     f.Limit,
		Offset:    f.Offset,
	}
	if f.CategoryID != 0 {
		ids, err := e.ResolveCategory(f.CategoryID)
		if err != nil {
			return nil, err
		}
		q.CategoryIDs = ids
	}
	return q, nil
}
