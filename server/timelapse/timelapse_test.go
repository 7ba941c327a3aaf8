package timelapse

import (
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/snaplapse/snaplapse/pkg/dbh"
	"github.com/snaplapse/snaplapse/pkg/log"
	"github.com/snaplapse/snaplapse/server/snapdb"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T, maxConcurrent int) (*Engine, *snapdb.SnapDB) {
	t.Helper()
	db, err := snapdb.Open(log.NewTestingLog(t), t.TempDir())
	require.NoError(t, err)
	return NewEngine(log.NewTestingLog(t), db, maxConcurrent), db
}

// addSnap adds a snapshot record without any backing image file.
func addSnap(t *testing.T, db *snapdb.SnapDB, categoryID *int64, capture time.Time) *snapdb.Snapshot {
	t.Helper()
	snap := &snapdb.Snapshot{
		Filename:    "missing.jpg",
		CategoryID:  categoryID,
		CaptureTime: dbh.MakeIntTime(capture),
	}
	require.NoError(t, db.AddSnapshot(snap))
	return snap
}

// addImageSnap adds a snapshot backed by a real JPEG in the media root.
func addImageSnap(t *testing.T, db *snapdb.SnapDB, capture time.Time, width, height int, fill color.NRGBA, camera string) *snapdb.Snapshot {
	t.Helper()
	snap := &snapdb.Snapshot{
		Filename:    camera + "-" + capture.UTC().Format("20060102-150405") + ".jpg",
		CaptureTime: dbh.MakeIntTime(capture),
		CameraID:    camera,
	}
	img := imaging.New(width, height, fill)
	require.NoError(t, imaging.Save(img, db.MediaPath(snap.Filename)))
	require.NoError(t, db.AddSnapshot(snap))
	return snap
}

func TestMinuteOfDayDistance(t *testing.T) {
	require.Equal(t, 0, minuteOfDayDistance(600, 600))
	require.Equal(t, 10, minuteOfDayDistance(600, 610))
	require.Equal(t, 10, minuteOfDayDistance(610, 600))
	// Wraparound across midnight
	require.Equal(t, 4, minuteOfDayDistance(23*60+58, 2))
	require.Equal(t, 4, minuteOfDayDistance(2, 23*60+58))
	// Antipodal times are the worst case
	require.Equal(t, 720, minuteOfDayDistance(0, 720))
}

func TestMatchDaily(t *testing.T) {
	e, db := setupEngine(t, 0)

	day := func(d, hour, min int) time.Time {
		return time.Date(2025, 6, d, hour, min, 0, 0, time.UTC)
	}
	near1 := addSnap(t, db, nil, day(1, 23, 57))
	near2 := addSnap(t, db, nil, day(3, 0, 3))
	addSnap(t, db, nil, day(4, 0, 10))
	addSnap(t, db, nil, day(5, 12, 0))

	// Midnight with 5 minute tolerance must match 23:57 and 00:03 via the
	// circular distance, but not 00:10.
	daily := &DailySpec{Hour: 0, Minute: 0, ToleranceMinutes: 5}
	matched, err := e.MatchDaily(daily, &Filter{})
	require.NoError(t, err)
	require.Len(t, matched, 2)
	require.Equal(t, near1.ID, matched[0].ID)
	require.Equal(t, near2.ID, matched[1].ID)

	// Limit/offset paginate the matched set, not the raw query.
	matched, err = e.MatchDaily(daily, &Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, near2.ID, matched[0].ID)

	matched, err = e.MatchDaily(daily, &Filter{Offset: 5})
	require.NoError(t, err)
	require.Len(t, matched, 0)

	_, err = e.MatchDaily(&DailySpec{Hour: 24}, &Filter{})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = e.MatchDaily(&DailySpec{Minute: 60}, &Filter{})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = e.MatchDaily(&DailySpec{ToleranceMinutes: -1}, &Filter{})
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestResolveCategory(t *testing.T) {
	e, db := setupEngine(t, 0)

	root, err := db.AddCategory("plants", nil, "")
	require.NoError(t, err)
	child, err := db.AddCategory("tomato", &root.ID, "")
	require.NoError(t, err)
	grandchild, err := db.AddCategory("roma", &child.ID, "")
	require.NoError(t, err)
	other, err := db.AddCategory("sky", nil, "")
	require.NoError(t, err)

	closure, err := e.ResolveCategory(root.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{root.ID, child.ID, grandchild.ID}, closure)
	require.NotContains(t, closure, other.ID)

	closure, err = e.ResolveCategory(grandchild.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{grandchild.ID}, closure)

	_, err = e.ResolveCategory(9999)
	require.ErrorIs(t, err, snapdb.ErrNotFound)

	// A cycle in the parent graph must terminate, not hang.
	require.NoError(t, db.UpdateCategory(root.ID, nil, nil, &grandchild.ID))
	closure, err = e.ResolveCategory(root.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{root.ID, child.ID, grandchild.ID}, closure)
}

func TestQueryCategoryClosure(t *testing.T) {
	e, db := setupEngine(t, 0)

	root, err := db.AddCategory("plants", nil, "")
	require.NoError(t, err)
	child, err := db.AddCategory("tomato", &root.ID, "")
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inRoot := addSnap(t, db, &root.ID, base)
	inChild := addSnap(t, db, &child.ID, base.Add(time.Hour))
	addSnap(t, db, nil, base.Add(2*time.Hour))

	snaps, err := e.Query(&Filter{CategoryID: root.ID})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, inRoot.ID, snaps[0].ID)
	require.Equal(t, inChild.ID, snaps[1].ID)

	n, err := e.Count(&Filter{CategoryID: root.ID})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestQueryBySnapshotIDs(t *testing.T) {
	e, db := setupEngine(t, 0)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := addSnap(t, db, nil, base)
	b := addSnap(t, db, nil, base.Add(time.Hour))
	c := addSnap(t, db, nil, base.Add(2*time.Hour))

	// Id order in the filter doesn't matter; results stay chronological.
	snaps, err := e.Query(&Filter{SnapshotIDs: []int64{c.ID, a.ID}})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, a.ID, snaps[0].ID)
	require.Equal(t, c.ID, snaps[1].ID)

	// Unknown ids are simply absent from the result.
	snaps, err = e.Query(&Filter{SnapshotIDs: []int64{b.ID, 424242}})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, b.ID, snaps[0].ID)
}

func TestQueryInvalidFilter(t *testing.T) {
	e, _ := setupEngine(t, 0)

	_, err := e.Query(&Filter{Limit: -1})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = e.Query(&Filter{Offset: -1})
	require.ErrorIs(t, err, ErrInvalidFilter)
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = e.Query(&Filter{StartTime: start, EndTime: end})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = e.Count(&Filter{Limit: -1})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = e.Query(&Filter{CategoryID: 12345})
	require.True(t, errors.Is(err, snapdb.ErrNotFound))
}

func TestFilterParamsRoundTrip(t *testing.T) {
	f := Filter{
		CategoryID:  7,
		StartTime:   time.UnixMilli(1748772000000).UTC(),
		EndTime:     time.UnixMilli(1751450400000).UTC(),
		Tag:         "growth",
		CameraID:    "cam2",
		Project:     "greenhouse",
		Source:      "upload",
		Limit:       50,
		Offset:      10,
		SnapshotIDs: []int64{3, 1, 2},
	}
	daily := &DailySpec{Hour: 6, Minute: 30, ToleranceMinutes: 15}

	f2, daily2 := FilterFromParams(f.Params(daily))
	require.Equal(t, f.CategoryID, f2.CategoryID)
	require.True(t, f.StartTime.Equal(f2.StartTime))
	require.True(t, f.EndTime.Equal(f2.EndTime))
	require.Equal(t, f.Tag, f2.Tag)
	require.Equal(t, f.CameraID, f2.CameraID)
	require.Equal(t, f.Project, f2.Project)
	require.Equal(t, f.Source, f2.Source)
	require.Equal(t, f.Limit, f2.Limit)
	require.Equal(t, f.Offset, f2.Offset)
	require.Equal(t, f.SnapshotIDs, f2.SnapshotIDs)
	require.Equal(t, daily, daily2)

	zero := Filter{}
	f3, daily3 := FilterFromParams(zero.Params(nil))
	require.True(t, f3.StartTime.IsZero())
	require.True(t, f3.EndTime.IsZero())
	require.Nil(t, daily3)
}
