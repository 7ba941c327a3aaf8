package timelapse

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snaplapse/snaplapse/server/snapdb"
	"github.com/stretchr/testify/require"
)

func videoDirEntries(t *testing.T, db *snapdb.SnapDB) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(db.VideoPath("x")))
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestGenerate(t *testing.T) {
	e, db := setupEngine(t, 0)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 9; i++ {
		addImageSnap(t, db, base.Add(time.Duration(i)*time.Hour), 64, 48, red, "cam1")
	}
	// One record whose file is missing must be skipped, not abort the run.
	addSnap(t, db, nil, base.Add(9*time.Hour))

	gen, err := e.Generate(context.Background(), &GenerateRequest{
		Filter:  Filter{},
		FPS:     5,
		Overlay: true,
	})
	require.NoError(t, err)
	require.Equal(t, snapdb.GenerationCompleted, gen.Status)
	require.Equal(t, 9, gen.SnapshotCount)
	require.Equal(t, 1, gen.SkippedCount)
	require.Equal(t, 9, gen.TotalFrames)
	require.Equal(t, 5, gen.FPS)
	require.Equal(t, int64(9*1000/5), gen.DurationMS)
	require.Equal(t, 64, gen.Width)
	require.Equal(t, 48, gen.Height)
	require.NotEmpty(t, gen.Filename)

	// The artifact exists at its final name and no partial file remains.
	st, err := os.Stat(db.VideoPath(gen.Filename))
	require.NoError(t, err)
	require.Equal(t, st.Size(), gen.FileSize)
	require.Greater(t, gen.FileSize, int64(0))
	require.Equal(t, []string{gen.Filename}, videoDirEntries(t, db))

	// The persisted filter reproduces the request.
	require.NotNil(t, gen.Filter)
	f, daily := FilterFromParams(gen.Filter.Data)
	require.Equal(t, Filter{}, f)
	require.Nil(t, daily)

	// The record is also readable back from the database.
	stored, err := db.GetGeneration(gen.ID)
	require.NoError(t, err)
	require.Equal(t, snapdb.GenerationCompleted, stored.Status)
	require.Equal(t, gen.Filename, stored.Filename)
}

func TestGenerateEmptyInput(t *testing.T) {
	e, db := setupEngine(t, 0)

	gen, err := e.Generate(context.Background(), &GenerateRequest{Filter: Filter{Project: "nothing"}})
	require.ErrorIs(t, err, ErrEmptyInput)
	require.NotNil(t, gen)
	require.Equal(t, snapdb.GenerationFailed, gen.Status)
	require.NotEmpty(t, gen.Error)
	require.Empty(t, gen.Filename)
	// No artifact, partial or otherwise.
	require.Empty(t, videoDirEntries(t, db))
}

func TestGenerateAllUndecodable(t *testing.T) {
	e, db := setupEngine(t, 0)

	// Records exist but no file decodes: empty input, and nothing on disk.
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	addSnap(t, db, nil, base)
	addSnap(t, db, nil, base.Add(time.Hour))

	gen, err := e.Generate(context.Background(), &GenerateRequest{})
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Equal(t, snapdb.GenerationFailed, gen.Status)
	require.Empty(t, videoDirEntries(t, db))
}

func TestGenerateInvalidRequest(t *testing.T) {
	e, db := setupEngine(t, 0)

	// Failed validation creates no record at all.
	_, err := e.Generate(context.Background(), &GenerateRequest{FPS: -1})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = e.Generate(context.Background(), &GenerateRequest{Filter: Filter{Limit: -1}})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = e.Generate(context.Background(), &GenerateRequest{Daily: &DailySpec{Hour: 25}})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = e.Generate(context.Background(), &GenerateRequest{
		Comparison: &ComparisonSpec{Filters: []Filter{{}}},
	})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = e.Generate(context.Background(), &GenerateRequest{
		Comparison: &ComparisonSpec{Filters: []Filter{{}, {}}, Layout: "diagonal"},
	})
	require.ErrorIs(t, err, ErrInvalidFilter)
	// Daily matching and comparison don't compose; refuse rather than
	// silently drop one of them.
	_, err = e.Generate(context.Background(), &GenerateRequest{
		Daily:      &DailySpec{Hour: 6},
		Comparison: &ComparisonSpec{Filters: []Filter{{}, {}}},
	})
	require.ErrorIs(t, err, ErrInvalidFilter)

	gens, err := db.Generations()
	require.NoError(t, err)
	require.Empty(t, gens)
}

func TestGenerateCancelled(t *testing.T) {
	e, db := setupEngine(t, 0)
	addImageSnap(t, db, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), 32, 32, red, "cam1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen, err := e.Generate(ctx, &GenerateRequest{})
	require.ErrorIs(t, err, ErrCancelled)
	require.Equal(t, snapdb.GenerationFailed, gen.Status)
	require.Contains(t, gen.Error, "cancelled")
	require.Empty(t, videoDirEntries(t, db))
}

func TestGenerateBusy(t *testing.T) {
	e, db := setupEngine(t, 1)
	addImageSnap(t, db, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), 32, 32, red, "cam1")

	// Occupy the only generation slot.
	e.genSlots <- struct{}{}
	_, err := e.Generate(context.Background(), &GenerateRequest{})
	require.ErrorIs(t, err, ErrBusy)
	<-e.genSlots

	// With the slot free the same request runs.
	gen, err := e.Generate(context.Background(), &GenerateRequest{})
	require.NoError(t, err)
	require.Equal(t, snapdb.GenerationCompleted, gen.Status)
}

func TestGenerateDaily(t *testing.T) {
	e, db := setupEngine(t, 0)

	// Three days of 06:00 captures plus noise at other times.
	for d := 1; d <= 3; d++ {
		addImageSnap(t, db, time.Date(2025, 6, d, 6, 0, 0, 0, time.UTC), 32, 32, green, "cam1")
		addImageSnap(t, db, time.Date(2025, 6, d, 18, 0, 0, 0, time.UTC), 32, 32, red, "cam1")
	}

	gen, err := e.Generate(context.Background(), &GenerateRequest{
		Daily: &DailySpec{Hour: 6, Minute: 0, ToleranceMinutes: 10},
	})
	require.NoError(t, err)
	require.Equal(t, snapdb.GenerationCompleted, gen.Status)
	require.Equal(t, 3, gen.TotalFrames)

	params := gen.Filter.Data
	require.NotNil(t, params.Daily)
	require.Equal(t, 6, params.Daily.Hour)
}

func TestGenerateComparison(t *testing.T) {
	e, db := setupEngine(t, 0)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		addImageSnap(t, db, base.Add(time.Duration(i)*time.Hour), 32, 32, red, "cam1")
	}
	for i := 0; i < 2; i++ {
		addImageSnap(t, db, base.Add(time.Duration(i)*time.Hour), 32, 32, green, "cam2")
	}

	gen, err := e.Generate(context.Background(), &GenerateRequest{
		FPS: 2,
		Comparison: &ComparisonSpec{
			Filters: []Filter{
				{CameraID: "cam1"},
				{CameraID: "cam2"},
			},
			Layout:     LayoutHorizontal,
			CellWidth:  32,
			CellHeight: 24,
		},
	})
	require.NoError(t, err)
	require.Equal(t, snapdb.GenerationCompleted, gen.Status)
	// Output length follows the longest sequence.
	require.Equal(t, 3, gen.TotalFrames)
	require.Equal(t, 64, gen.Width)
	require.Equal(t, 24, gen.Height)
	require.Greater(t, gen.FileSize, int64(0))

	_, err = os.Stat(db.VideoPath(gen.Filename))
	require.NoError(t, err)

	// The persisted params carry the full comparison, so the record alone
	// reproduces the request.
	spec := ComparisonFromParams(gen.Filter.Data)
	require.NotNil(t, spec)
	require.Len(t, spec.Filters, 2)
	require.Equal(t, "cam1", spec.Filters[0].CameraID)
	require.Equal(t, "cam2", spec.Filters[1].CameraID)
	require.Equal(t, LayoutHorizontal, spec.Layout)
	require.Equal(t, 32, spec.CellWidth)
	require.Equal(t, 24, spec.CellHeight)
}

func TestGenerateFromIDs(t *testing.T) {
	e, db := setupEngine(t, 0)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 4; i++ {
		snap := addImageSnap(t, db, base.Add(time.Duration(i)*time.Hour), 32, 32, red, "cam1")
		ids = append(ids, snap.ID)
	}

	// Ids arrive in arbitrary order and include one that doesn't exist;
	// output order is still chronological and the unknown id is skipped.
	gen, err := e.Generate(context.Background(), &GenerateRequest{
		Filter: Filter{SnapshotIDs: []int64{ids[2], ids[0], 99999, ids[3]}},
		FPS:    4,
	})
	require.NoError(t, err)
	require.Equal(t, snapdb.GenerationCompleted, gen.Status)
	require.Equal(t, 3, gen.TotalFrames)

	f, _ := FilterFromParams(gen.Filter.Data)
	require.ElementsMatch(t, []int64{ids[2], ids[0], 99999, ids[3]}, f.SnapshotIDs)
}

func TestStartGenerate(t *testing.T) {
	e, db := setupEngine(t, 1)
	addImageSnap(t, db, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), 32, 32, red, "cam1")

	gen, err := e.StartGenerate(&GenerateRequest{})
	require.NoError(t, err)
	require.Equal(t, snapdb.GenerationPending, gen.Status)

	deadline := time.Now().Add(30 * time.Second)
	for {
		stored, err := db.GetGeneration(gen.ID)
		require.NoError(t, err)
		if stored.Status.IsTerminal() {
			require.Equal(t, snapdb.GenerationCompleted, stored.Status)
			require.Equal(t, 1, stored.TotalFrames)
			break
		}
		require.True(t, time.Now().Before(deadline), "generation did not finish")
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGenerateOutputName(t *testing.T) {
	e, db := setupEngine(t, 0)
	addImageSnap(t, db, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), 32, 32, red, "cam1")

	gen, err := e.Generate(context.Background(), &GenerateRequest{OutputName: "spring"})
	require.NoError(t, err)
	require.Equal(t, "spring.avi", gen.Filename)
	_, err = os.Stat(db.VideoPath("spring.avi"))
	require.NoError(t, err)
}
