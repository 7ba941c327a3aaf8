package timelapse

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Layout is the arrangement of sub-sequences in a comparison video.
// It is always chosen by the caller, never inferred from the sequence count.
type Layout string

const (
	LayoutHorizontal Layout = "horizontal" // single row
	LayoutGrid       Layout = "grid"       // near-square grid
)

// DefaultCellWidth/Height is the per-sequence cell size when the caller
// doesn't specify one.
const (
	DefaultCellWidth  = 640
	DefaultCellHeight = 480
)

// ComposeOptions controls comparison composition.
type ComposeOptions struct {
	Layout     Layout
	CellWidth  int
	CellHeight int
	// BlankPad pads short sequences with black frames instead of repeating
	// their last frame.
	BlankPad bool
}

func (o *ComposeOptions) setDefaults() error {
	if o.Layout == "" {
		o.Layout = LayoutHorizontal
	}
	if o.Layout != LayoutHorizontal && o.Layout != LayoutGrid {
		return fmt.Errorf("%w: unknown comparison layout '%v'", ErrInvalidFilter, o.Layout)
	}
	if o.CellWidth <= 0 {
		o.CellWidth = DefaultCellWidth
	}
	if o.CellHeight <= 0 {
		o.CellHeight = DefaultCellHeight
	}
	return nil
}

// grid returns (columns, rows) for n cells under the layout.
func (o *ComposeOptions) grid(n int) (int, int) {
	if o.Layout == LayoutHorizontal {
		return n, 1
	}
	cols := 1
	for cols*cols < n {
		cols++
	}
	rows := (n + cols - 1) / cols
	return cols, rows
}

// composer lays n cells out on a shared canvas, one output frame at a time.
// It holds one blank cell and nothing else, so a caller can stream composed
// frames straight into an encoder without buffering whole sequences.
type composer struct {
	opt   ComposeOptions
	cols  int
	outW  int
	outH  int
	blank *image.NRGBA
}

func newComposer(numSequences int, opt ComposeOptions) (*composer, error) {
	if err := opt.setDefaults(); err != nil {
		return nil, err
	}
	cols, rows := opt.grid(numSequences)
	return &composer{
		opt:   opt,
		cols:  cols,
		outW:  cols * opt.CellWidth,
		outH:  rows * opt.CellHeight,
		blank: imaging.New(opt.CellWidth, opt.CellHeight, letterboxFill),
	}, nil
}

// combine pastes one cell per sequence onto a fresh canvas. Cells must
// already be at cell size; a nil cell renders blank.
func (c *composer) combine(cells []*image.NRGBA) *image.NRGBA {
	combined := imaging.New(c.outW, c.outH, letterboxFill)
	for i, cell := range cells {
		if cell == nil {
			cell = c.blank
		}
		x := (i % c.cols) * c.opt.CellWidth
		y := (i / c.cols) * c.opt.CellHeight
		combined = imaging.Paste(combined, cell, image.Pt(x, y))
	}
	return combined
}

// Compose aligns multiple frame sequences by index and lays each index's
// frames out side by side (or in a grid) as one output sequence.
// The output length is the longest input's length; shorter sequences repeat
// their last frame ("freeze") so the composite never goes blank mid-way.
// Every frame is resized into a uniform cell before layout.
//
// This materializes the whole output; the generation pipeline streams
// through composer.combine directly instead.
func Compose(sequences [][]*image.NRGBA, opt ComposeOptions) ([]*image.NRGBA, error) {
	comp, err := newComposer(len(sequences), opt)
	if err != nil {
		return nil, err
	}
	maxLen := 0
	for _, seq := range sequences {
		if len(seq) > maxLen {
			maxLen = len(seq)
		}
	}
	if maxLen == 0 {
		return nil, fmt.Errorf("%w (no comparison sequences with frames)", ErrEmptyInput)
	}

	// Pre-normalize every sequence to cell size, so freeze-padded frames are
	// resized once, not once per repeat.
	cells := make([][]*image.NRGBA, len(sequences))
	for i, seq := range sequences {
		cells[i] = make([]*image.NRGBA, len(seq))
		for j, frame := range seq {
			cells[i][j] = normalizeFrame(frame, comp.opt.CellWidth, comp.opt.CellHeight)
		}
	}

	out := make([]*image.NRGBA, 0, maxLen)
	current := make([]*image.NRGBA, len(sequences))
	for frameIdx := 0; frameIdx < maxLen; frameIdx++ {
		for seqIdx, seq := range cells {
			switch {
			case frameIdx < len(seq):
				current[seqIdx] = seq[frameIdx]
			case len(seq) > 0 && !comp.opt.BlankPad:
				current[seqIdx] = seq[len(seq)-1]
			default:
				current[seqIdx] = nil
			}
		}
		out = append(out, comp.combine(current))
	}
	return out, nil
}
