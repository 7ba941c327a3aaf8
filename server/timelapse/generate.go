package timelapse

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/snaplapse/snaplapse/server/snapdb"
)

// DefaultFPS is used when a request leaves the frame rate at zero.
const DefaultFPS = 10

// ComparisonSpec requests a side-by-side composition instead of a single
// sequence. Each filter produces one cell of the composed canvas.
type ComparisonSpec struct {
	Filters    []Filter `json:"filters"`
	Layout     Layout   `json:"layout"`
	CellWidth  int      `json:"cellWidth"`
	CellHeight int      `json:"cellHeight"`
}

// GenerateRequest is a complete description of one generation job.
type GenerateRequest struct {
	Filter     Filter          `json:"filter"`
	Daily      *DailySpec      `json:"daily"`
	FPS        int             `json:"fps"`
	Overlay    bool            `json:"overlay"`
	Comparison *ComparisonSpec `json:"comparison"`
	OutputName string          `json:"outputName"`
}

func (req *GenerateRequest) validate() error {
	if req.FPS == 0 {
		req.FPS = DefaultFPS
	}
	if req.FPS < 0 {
		return fmt.Errorf("%w (fps must be positive)", ErrInvalidFilter)
	}
	if err := req.Filter.Validate(); err != nil {
		return err
	}
	if req.Daily != nil {
		if err := req.Daily.Validate(); err != nil {
			return err
		}
	}
	if req.Comparison != nil {
		if req.Daily != nil {
			return fmt.Errorf("%w (daily matching cannot be combined with comparison)", ErrInvalidFilter)
		}
		if len(req.Comparison.Filters) < 2 {
			return fmt.Errorf("%w (comparison needs at least two filters)", ErrInvalidFilter)
		}
		for i := range req.Comparison.Filters {
			if err := req.Comparison.Filters[i].Validate(); err != nil {
				return fmt.Errorf("comparison filter %v: %w", i, err)
			}
		}
		opt := ComposeOptions{Layout: req.Comparison.Layout}
		if err := opt.setDefaults(); err != nil {
			return err
		}
	}
	return nil
}

// params flattens the request into the form persisted on the generation
// record, comparison filters included, so the record alone reproduces the
// encoded sequences.
func (req *GenerateRequest) params() snapdb.GenerationParams {
	p := req.Filter.Params(req.Daily)
	if req.Comparison != nil {
		cp := &snapdb.ComparisonParams{
			Layout:     string(req.Comparison.Layout),
			CellWidth:  req.Comparison.CellWidth,
			CellHeight: req.Comparison.CellHeight,
		}
		for i := range req.Comparison.Filters {
			cp.Filters = append(cp.Filters, req.Comparison.Filters[i].Params(nil))
		}
		p.Comparison = cp
	}
	return p
}

// ComparisonFromParams rebuilds the comparison spec persisted on a record,
// or nil for a single-sequence generation. Together with FilterFromParams
// it inverts GenerateRequest.params.
func ComparisonFromParams(p snapdb.GenerationParams) *ComparisonSpec {
	if p.Comparison == nil {
		return nil
	}
	spec := &ComparisonSpec{
		Layout:     Layout(p.Comparison.Layout),
		CellWidth:  p.Comparison.CellWidth,
		CellHeight: p.Comparison.CellHeight,
	}
	for _, fp := range p.Comparison.Filters {
		f, _ := FilterFromParams(fp)
		spec.Filters = append(spec.Filters, f)
	}
	return spec
}

// Generate runs one generation job to completion. The call is synchronous; a
// caller wanting async behavior uses StartGenerate instead. At most
// maxConcurrent jobs run at once, and a saturated engine rejects immediately
// with ErrBusy rather than queueing.
//
// A request that fails validation leaves no record behind. Once a record is
// created, every outcome is recorded on it, including cancellation via ctx.
func (e *Engine) Generate(ctx context.Context, req *GenerateRequest) (*snapdb.VideoGeneration, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	select {
	case e.genSlots <- struct{}{}:
	default:
		return nil, ErrBusy
	}
	defer func() { <-e.genSlots }()

	rec, err := newRecorder(e.log, e.db, req.params(), req.FPS)
	if err != nil {
		return nil, err
	}
	defer e.ClearProgress(rec.gen.ID)

	return rec.gen, e.execute(ctx, rec, req)
}

// StartGenerate begins a generation in the background and returns its record
// as soon as it exists, with the pipeline still to run. Callers observe
// completion by polling the record or Progress. Validation failures and
// ErrBusy surface immediately, before any record exists.
func (e *Engine) StartGenerate(req *GenerateRequest) (*snapdb.VideoGeneration, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	select {
	case e.genSlots <- struct{}{}:
	default:
		return nil, ErrBusy
	}

	rec, err := newRecorder(e.log, e.db, req.params(), req.FPS)
	if err != nil {
		<-e.genSlots
		return nil, err
	}
	pending := *rec.gen
	go func() {
		defer func() { <-e.genSlots }()
		defer e.ClearProgress(rec.gen.ID)
		e.execute(context.Background(), rec, req)
	}()
	return &pending, nil
}

func (e *Engine) execute(ctx context.Context, rec *recorder, req *GenerateRequest) error {
	if err := e.run(ctx, rec, req); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		rec.failed(err.Error())
		e.log.Warnf("Generation %v failed: %v", rec.gen.ID, err)
		return err
	}
	e.log.Infof("Generation %v complete: %v (%v frames, %v skipped)", rec.gen.ID, rec.gen.Filename, rec.gen.TotalFrames, rec.gen.SkippedCount)
	return nil
}

func (e *Engine) run(ctx context.Context, rec *recorder, req *GenerateRequest) error {
	if err := rec.running(); err != nil {
		return err
	}

	filename := req.OutputName
	if filename == "" {
		filename = fmt.Sprintf("timelapse-%v.avi", rec.gen.ID)
	} else if !strings.HasSuffix(strings.ToLower(filename), ".avi") {
		filename += ".avi"
	}
	dest := e.db.VideoPath(filename)

	var art *encodedArtifact
	var report *FrameReport
	var err error
	if req.Comparison != nil {
		art, report, err = e.encodeComparison(ctx, rec.gen.ID, req, dest)
	} else {
		art, report, err = e.encodeSequence(ctx, rec.gen.ID, req, dest)
	}
	if err != nil {
		return err
	}
	for _, skip := range report.Skipped {
		e.log.Warnf("Generation %v skipped snapshot %v (%v): %v", rec.gen.ID, skip.SnapshotID, skip.Filename, skip.Reason)
	}
	return rec.completed(filename, art, report)
}

// encodeSequence is the plain single-sequence pipeline. Frames stream from
// decode straight into the encoder, so memory stays bounded by one canvas
// regardless of how many snapshots match.
func (e *Engine) encodeSequence(ctx context.Context, genID int64, req *GenerateRequest, dest string) (*encodedArtifact, *FrameReport, error) {
	var snaps []snapdb.Snapshot
	var err error
	if req.Daily != nil {
		snaps, err = e.MatchDaily(req.Daily, &req.Filter)
	} else {
		snaps, err = e.Query(&req.Filter)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(snaps) == 0 {
		return nil, nil, fmt.Errorf("%w (no snapshots matched the filter)", ErrEmptyInput)
	}
	e.setProgress(genID, 0, len(snaps), "encoding")

	var enc *videoEncoder
	opt := FrameOptions{Overlay: req.Overlay}
	report, err := e.loadFrames(ctx, snaps, opt, func(frame *image.NRGBA, snap *snapdb.Snapshot) error {
		if enc == nil {
			enc, err = newVideoEncoder(dest, frame.Bounds().Dx(), frame.Bounds().Dy(), req.FPS)
			if err != nil {
				return err
			}
		}
		if err := enc.addFrame(frame); err != nil {
			return err
		}
		e.setProgress(genID, enc.frames, len(snaps), "encoding")
		return nil
	})
	if err != nil {
		if enc != nil {
			enc.abort()
		}
		return nil, nil, err
	}
	art, err := enc.finish()
	if err != nil {
		return nil, nil, err
	}
	e.setProgress(genID, art.Frames, art.Frames, "complete")
	return art, report, nil
}

// encodeComparison streams each filter's sequence through its own cursor,
// composing and encoding one output frame at a time. The pipeline holds one
// current frame per sequence (retained for freeze-padding) plus the composed
// canvas, never a whole sequence. A filter that matches nothing contributes a
// blank cell; only an entirely empty request is an error.
func (e *Engine) encodeComparison(ctx context.Context, genID int64, req *GenerateRequest, dest string) (*encodedArtifact, *FrameReport, error) {
	spec := req.Comparison
	opt := ComposeOptions{
		Layout:     spec.Layout,
		CellWidth:  spec.CellWidth,
		CellHeight: spec.CellHeight,
	}
	comp, err := newComposer(len(spec.Filters), opt)
	if err != nil {
		return nil, nil, err
	}

	// Cursors normalize straight to cell size, so no source-resolution frame
	// outlives its decode.
	frameOpt := FrameOptions{
		CanvasWidth:  comp.opt.CellWidth,
		CanvasHeight: comp.opt.CellHeight,
		Overlay:      req.Overlay,
	}
	cursors := make([]*frameCursor, len(spec.Filters))
	longest := 0
	for i := range spec.Filters {
		snaps, err := e.Query(&spec.Filters[i])
		if err != nil {
			return nil, nil, err
		}
		if len(snaps) > longest {
			longest = len(snaps)
		}
		cursors[i] = e.newFrameCursor(snaps, frameOpt)
	}
	e.setProgress(genID, 0, longest, "encoding")

	var enc *videoEncoder
	cells := make([]*image.NRGBA, len(cursors))
	for {
		fresh := false
		for i, cursor := range cursors {
			frame, _, err := cursor.next(ctx)
			if err != nil {
				if enc != nil {
					enc.abort()
				}
				return nil, nil, err
			}
			switch {
			case frame != nil:
				cells[i] = frame
				fresh = true
			case cursor.last != nil && !comp.opt.BlankPad:
				cells[i] = cursor.last
			default:
				cells[i] = nil
			}
		}
		if !fresh {
			break
		}
		combined := comp.combine(cells)
		if enc == nil {
			enc, err = newVideoEncoder(dest, combined.Bounds().Dx(), combined.Bounds().Dy(), req.FPS)
			if err != nil {
				return nil, nil, err
			}
		}
		if err := enc.addFrame(combined); err != nil {
			enc.abort()
			return nil, nil, err
		}
		e.setProgress(genID, enc.frames, longest, "encoding")
	}

	merged := &FrameReport{}
	for _, cursor := range cursors {
		merged.Loaded += cursor.report.Loaded
		merged.Skipped = append(merged.Skipped, cursor.report.Skipped...)
	}
	if enc == nil {
		return nil, nil, fmt.Errorf("%w (no comparison sequences with frames)", ErrEmptyInput)
	}
	art, err := enc.finish()
	if err != nil {
		return nil, nil, err
	}
	e.setProgress(genID, art.Frames, art.Frames, "complete")
	return art, merged, nil
}
