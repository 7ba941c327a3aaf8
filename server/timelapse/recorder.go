package timelapse

import (
	"github.com/snaplapse/snaplapse/pkg/dbh"
	"github.com/snaplapse/snaplapse/pkg/log"
	"github.com/snaplapse/snaplapse/server/snapdb"
)

// recorder is the sole writer of a VideoGeneration record. The lifecycle is
// PENDING -> RUNNING -> COMPLETED | FAILED; terminal states are final, and a
// failed generation is resubmitted as a new record rather than retried.
type recorder struct {
	log log.Log
	db  *snapdb.SnapDB
	gen *snapdb.VideoGeneration
}

// newRecorder creates the PENDING record for an accepted request.
func newRecorder(logs log.Log, db *snapdb.SnapDB, params snapdb.GenerationParams, fps int) (*recorder, error) {
	gen := &snapdb.VideoGeneration{
		Status: snapdb.GenerationPending,
		FPS:    fps,
		Filter: dbh.MakeJSONField(params),
	}
	if err := db.AddGeneration(gen); err != nil {
		return nil, err
	}
	return &recorder{
		log: logs,
		db:  db,
		gen: gen,
	}, nil
}

// running marks the start of the pipeline.
func (r *recorder) running() error {
	r.gen.Status = snapdb.GenerationRunning
	return r.db.UpdateGeneration(r.gen)
}

// completed records the finished artifact and the skip report.
// SnapshotCount is the number of frames actually encoded, not the number of
// snapshots the query matched.
func (r *recorder) completed(filename string, art *encodedArtifact, report *FrameReport) error {
	r.gen.Status = snapdb.GenerationCompleted
	r.gen.Filename = filename
	r.gen.SnapshotCount = art.Frames
	r.gen.SkippedCount = len(report.Skipped)
	r.gen.TotalFrames = art.Frames
	r.gen.DurationMS = int64(art.Frames) * 1000 / int64(r.gen.FPS)
	r.gen.FileSize = art.FileSize
	r.gen.Width = art.Width
	r.gen.Height = art.Height
	return r.db.UpdateGeneration(r.gen)
}

// failed records a terminal failure. Any partial artifact has already been
// removed by the encoder.
func (r *recorder) failed(reason string) {
	if r.gen.Status.IsTerminal() {
		return
	}
	r.gen.Status = snapdb.GenerationFailed
	r.gen.Error = reason
	if err := r.db.UpdateGeneration(r.gen); err != nil {
		r.log.Errorf("Failed to record generation %v failure (%v): %v", r.gen.ID, reason, err)
	}
}
