package snapdb

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/snaplapse/snaplapse/pkg/dbh"
	"github.com/snaplapse/snaplapse/pkg/log"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *SnapDB {
	t.Helper()
	db, err := Open(log.NewTestingLog(t), t.TempDir())
	require.NoError(t, err)
	return db
}

func addSnap(t *testing.T, db *SnapDB, categoryID *int64, capture time.Time, camera, project string, tags ...string) *Snapshot {
	t.Helper()
	snap := &Snapshot{
		Filename:     "f.jpg",
		OriginalName: "f.jpg",
		CategoryID:   categoryID,
		CaptureTime:  dbh.MakeIntTime(capture),
		CameraID:     camera,
		Project:      project,
	}
	if len(tags) > 0 {
		snap.Tags = dbh.MakeJSONField(tags)
	}
	require.NoError(t, db.AddSnapshot(snap))
	return snap
}

func TestCategories(t *testing.T) {
	db := setup(t)

	root, err := db.AddCategory("Root System", nil, "Root development")
	require.NoError(t, err)
	child, err := db.AddCategory("Daily Growth", &root.ID, "")
	require.NoError(t, err)

	got, err := db.GetCategory(child.ID)
	require.NoError(t, err)
	require.Equal(t, root.ID, *got.ParentID)

	_, err = db.GetCategory(9999)
	require.ErrorIs(t, err, ErrNotFound)

	kids, err := db.CategoryChildren(root.ID)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	require.Equal(t, child.ID, kids[0].ID)

	// Delete is refused while children exist
	require.Error(t, db.DeleteCategory(root.ID))
	require.NoError(t, db.DeleteCategory(child.ID))
	require.NoError(t, db.DeleteCategory(root.ID))
}

func TestSnapshotValidation(t *testing.T) {
	db := setup(t)
	err := db.AddSnapshot(&Snapshot{Filename: "x.jpg", OriginalName: "x.jpg"})
	require.Error(t, err)
	err = db.AddSnapshot(&Snapshot{OriginalName: "x.jpg", CaptureTime: dbh.MakeIntTime(time.Now())})
	require.Error(t, err)
}

func TestQueryOrdering(t *testing.T) {
	db := setup(t)
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	// Insert out of order, including two snapshots with the same capture time
	addSnap(t, db, nil, base.Add(2*time.Hour), "cam1", "p")
	addSnap(t, db, nil, base, "cam1", "p")
	addSnap(t, db, nil, base.Add(time.Hour), "cam1", "p")
	addSnap(t, db, nil, base.Add(time.Hour), "cam2", "p")

	snaps, err := db.QuerySnapshots(&SnapshotQuery{})
	require.NoError(t, err)
	require.Len(t, snaps, 4)
	for i := 1; i < len(snaps); i++ {
		prev, cur := snaps[i-1], snaps[i]
		require.LessOrEqual(t, int64(prev.CaptureTime), int64(cur.CaptureTime))
		if prev.CaptureTime == cur.CaptureTime {
			require.Less(t, prev.ID, cur.ID)
		}
	}
}

func TestQueryFilters(t *testing.T) {
	db := setup(t)
	cat, err := db.AddCategory("Leaf System", nil, "")
	require.NoError(t, err)
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	a := addSnap(t, db, &cat.ID, base, "cam1", "greenhouse", "Week-1", "roots")
	addSnap(t, db, nil, base.Add(time.Hour), "cam2", "field")

	// Category
	snaps, err := db.QuerySnapshots(&SnapshotQuery{CategoryIDs: []int64{cat.ID}})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, a.ID, snaps[0].ID)

	// Tag is a case-insensitive substring match
	snaps, err = db.QuerySnapshots(&SnapshotQuery{Tag: "week"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	// Camera + project
	snaps, err = db.QuerySnapshots(&SnapshotQuery{CameraID: "cam2", Project: "field"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	// Inclusive time range
	snaps, err = db.QuerySnapshots(&SnapshotQuery{StartTime: base, EndTime: base})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	// Pagination
	snaps, err = db.QuerySnapshots(&SnapshotQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	n, err := db.CountSnapshots(&SnapshotQuery{})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestDistinctAndStats(t *testing.T) {
	db := setup(t)
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	addSnap(t, db, nil, base, "cam1", "greenhouse")
	addSnap(t, db, nil, base.Add(time.Minute), "cam2", "greenhouse")
	addSnap(t, db, nil, base.Add(2*time.Minute), "cam2", "field")

	projects, err := db.DistinctProjects()
	require.NoError(t, err)
	require.Equal(t, []string{"field", "greenhouse"}, projects)

	cameras, err := db.DistinctCameras()
	require.NoError(t, err)
	require.Equal(t, []string{"cam1", "cam2"}, cameras)

	cameras, err = db.CamerasForProject("field")
	require.NoError(t, err)
	require.Equal(t, []string{"cam2"}, cameras)

	stats, err := db.Stats()
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalSnapshots)
	require.Equal(t, dbh.MakeIntTime(base), stats.EarliestCapture)
}

func TestGenerations(t *testing.T) {
	db := setup(t)

	gen := &VideoGeneration{
		Status: GenerationPending,
		Filter: dbh.MakeJSONField(GenerationParams{Tag: "roots"}),
	}
	require.NoError(t, db.AddGeneration(gen))
	require.NotZero(t, gen.ID)

	got, err := db.GetGeneration(gen.ID)
	require.NoError(t, err)
	require.Equal(t, GenerationPending, got.Status)
	require.Equal(t, "roots", got.Filter.Data.Tag)

	got.Status = GenerationCompleted
	got.SnapshotCount = 9
	got.SkippedCount = 1
	require.NoError(t, db.UpdateGeneration(got))

	again, err := db.GetGeneration(gen.ID)
	require.NoError(t, err)
	require.Equal(t, GenerationCompleted, again.Status)
	require.True(t, again.Status.IsTerminal())
	require.Equal(t, 9, again.SnapshotCount)

	require.NoError(t, db.DeleteGeneration(gen.ID))
	_, err = db.GetGeneration(gen.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCleanupMissingFiles(t *testing.T) {
	db := setup(t)
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	backed := []*Snapshot{}
	for i := 0; i < 3; i++ {
		snap := &Snapshot{
			Filename:     fmt.Sprintf("ok-%v.jpg", i),
			OriginalName: "ok.jpg",
			CaptureTime:  dbh.MakeIntTime(base.Add(time.Duration(i) * time.Hour)),
		}
		require.NoError(t, os.WriteFile(db.MediaPath(snap.Filename), []byte("jpeg"), 0644))
		require.NoError(t, db.AddSnapshot(snap))
		backed = append(backed, snap)
	}
	orphans := []*Snapshot{}
	for i := 0; i < 2; i++ {
		snap := &Snapshot{
			Filename:     fmt.Sprintf("gone-%v.jpg", i),
			OriginalName: "gone.jpg",
			CaptureTime:  dbh.MakeIntTime(base.Add(time.Duration(10+i) * time.Hour)),
		}
		require.NoError(t, db.AddSnapshot(snap))
		orphans = append(orphans, snap)
	}

	deleted, err := db.CleanupMissingFiles()
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	snaps, err := db.QuerySnapshots(&SnapshotQuery{})
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	for i, snap := range snaps {
		require.Equal(t, backed[i].ID, snap.ID)
	}
	for _, snap := range orphans {
		require.NotContains(t, []int64{snaps[0].ID, snaps[1].ID, snaps[2].ID}, snap.ID)
	}

	// A second pass finds nothing left to remove.
	deleted, err = db.CleanupMissingFiles()
	require.NoError(t, err)
	require.Zero(t, deleted)
}
