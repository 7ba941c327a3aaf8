package timelapse

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/snaplapse/snaplapse/server/snapdb"
)

// letterboxFill is the padding color used when a frame's aspect ratio does
// not match the canvas.
var letterboxFill = color.NRGBA{0, 0, 0, 255}

// SkipReason records one snapshot that could not be turned into a frame.
type SkipReason struct {
	SnapshotID int64  `json:"snapshotID"`
	Filename   string `json:"filename"`
	Reason     string `json:"reason"`
}

// FrameReport is the outcome of a frame-loading pass: how many frames were
// produced, and why the rest were not. A skipped frame is not an abort;
// the report lets callers distinguish "asked for 100, got 97" from silent
// data loss.
type FrameReport struct {
	Loaded  int
	Skipped []SkipReason
}

// FrameOptions controls normalization of a loaded sequence.
type FrameOptions struct {
	// Canvas dimensions. When zero, the first successfully decoded snapshot
	// fixes the canvas for the whole sequence.
	CanvasWidth  int
	CanvasHeight int
	// Stamp the capture time onto each frame
	Overlay bool
}

// frameCursor walks one snapshot sequence, decoding and normalizing frames
// on demand. It holds only the most recent frame ('last', kept for
// freeze-padding), so memory stays at one canvas per cursor no matter how
// long the sequence is. Cancellation is checked before each decode.
type frameCursor struct {
	e       *Engine
	snaps   []snapdb.Snapshot
	opt     FrameOptions
	idx     int
	canvasW int
	canvasH int
	last    *image.NRGBA
	report  FrameReport
}

func (e *Engine) newFrameCursor(snaps []snapdb.Snapshot, opt FrameOptions) *frameCursor {
	return &frameCursor{
		e:       e,
		snaps:   snaps,
		opt:     opt,
		canvasW: opt.CanvasWidth,
		canvasH: opt.CanvasHeight,
	}
}

// next returns the next decodable frame and its snapshot, or (nil, nil, nil)
// once the sequence is exhausted. Undecodable snapshots are skipped and
// recorded in the cursor's report.
func (c *frameCursor) next(ctx context.Context) (*image.NRGBA, *snapdb.Snapshot, error) {
	for c.idx < len(c.snaps) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		snap := &c.snaps[c.idx]
		c.idx++
		img, err := c.e.decodeSnapshot(snap)
		if err != nil {
			c.e.log.Warnf("Skipping snapshot %v ('%v'): %v", snap.ID, snap.Filename, err)
			c.report.Skipped = append(c.report.Skipped, SkipReason{
				SnapshotID: snap.ID,
				Filename:   snap.Filename,
				Reason:     err.Error(),
			})
			continue
		}
		if c.canvasW == 0 || c.canvasH == 0 {
			c.canvasW, c.canvasH = img.Bounds().Dx(), img.Bounds().Dy()
		}
		frame := normalizeFrame(img, c.canvasW, c.canvasH)
		if c.opt.Overlay {
			frame = StampTimestamp(frame, snap.CaptureTime.Get())
		}
		c.report.Loaded++
		c.last = frame
		return frame, snap, nil
	}
	return nil, nil, nil
}

// loadFrames decodes and normalizes the given snapshots one at a time, in
// input order, handing each finished frame to 'emit'. Frames whose files are
// missing or undecodable are skipped and recorded in the report. Returns
// ErrEmptyInput if nothing decodes.
//
// Memory stays O(canvas): a frame is released as soon as emit returns.
func (e *Engine) loadFrames(ctx context.Context, snaps []snapdb.Snapshot, opt FrameOptions, emit func(frame *image.NRGBA, snap *snapdb.Snapshot) error) (*FrameReport, error) {
	cursor := e.newFrameCursor(snaps, opt)
	for {
		frame, snap, err := cursor.next(ctx)
		if err != nil {
			return &cursor.report, err
		}
		if frame == nil {
			break
		}
		if err := emit(frame, snap); err != nil {
			return &cursor.report, err
		}
	}
	if cursor.report.Loaded == 0 {
		return &cursor.report, fmt.Errorf("%w (%v snapshots matched, %v skipped)", ErrEmptyInput, len(snaps), len(cursor.report.Skipped))
	}
	return &cursor.report, nil
}

func (e *Engine) decodeSnapshot(snap *snapdb.Snapshot) (image.Image, error) {
	r, err := e.db.OpenSnapshotBytes(snap)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode '%v': %w", snap.Filename, err)
	}
	return img, nil
}

// normalizeFrame fits img into a canvasW x canvasH frame, preserving aspect
// ratio and letterboxing the shorter axis. Images are never stretched.
func normalizeFrame(img image.Image, canvasW, canvasH int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == canvasW && b.Dy() == canvasH {
		if nrgba, ok := img.(*image.NRGBA); ok {
			return nrgba
		}
		return imaging.Clone(img)
	}
	fitted := imaging.Fit(img, canvasW, canvasH, imaging.Lanczos)
	if fitted.Bounds().Dx() == canvasW && fitted.Bounds().Dy() == canvasH {
		return fitted
	}
	canvas := imaging.New(canvasW, canvasH, letterboxFill)
	return imaging.PasteCenter(canvas, fitted)
}
