package timelapse

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"github.com/icza/mjpeg"
)

const jpegQuality = 85

// encodedArtifact describes a finished video file.
type encodedArtifact struct {
	Path     string
	Frames   int
	Width    int
	Height   int
	FileSize int64
}

// videoEncoder writes an MJPEG/AVI stream to '<dest>.partial' and renames it
// onto 'dest' only when finish() succeeds, so no caller ever observes a
// half-written artifact. abort() (or a failed finish) removes the partial.
type videoEncoder struct {
	dest    string
	partial string
	aw      mjpeg.AviWriter
	width   int
	height  int
	fps     int
	frames  int
}

func newVideoEncoder(dest string, width, height, fps int) (*videoEncoder, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("%w: fps must be positive, got %v", ErrInvalidFilter, fps)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid frame dimensions %vx%v", ErrEncoding, width, height)
	}
	partial := dest + ".partial"
	aw, err := mjpeg.New(partial, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, fmt.Errorf("%w: create '%v': %v", ErrEncoding, partial, err)
	}
	return &videoEncoder{
		dest:    dest,
		partial: partial,
		aw:      aw,
		width:   width,
		height:  height,
		fps:     fps,
	}, nil
}

// addFrame appends one frame. All frames of one artifact must share the
// encoder's dimensions; that is guaranteed upstream by frame normalization.
func (v *videoEncoder) addFrame(frame *image.NRGBA) error {
	if frame.Bounds().Dx() != v.width || frame.Bounds().Dy() != v.height {
		return fmt.Errorf("%w: frame is %vx%v, artifact is %vx%v",
			ErrEncoding, frame.Bounds().Dx(), frame.Bounds().Dy(), v.width, v.height)
	}
	buf := bytes.Buffer{}
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if err := v.aw.AddFrame(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	v.frames++
	return nil
}

// abort discards the partial file.
func (v *videoEncoder) abort() {
	v.aw.Close()
	os.Remove(v.partial)
}

// finish closes the stream and atomically moves it into place.
func (v *videoEncoder) finish() (*encodedArtifact, error) {
	if v.frames == 0 {
		v.abort()
		return nil, fmt.Errorf("%w (no frames written)", ErrEmptyInput)
	}
	if err := v.aw.Close(); err != nil {
		os.Remove(v.partial)
		return nil, fmt.Errorf("%w: close: %v", ErrEncoding, err)
	}
	info, err := os.Stat(v.partial)
	if err != nil || info.Size() == 0 {
		os.Remove(v.partial)
		return nil, fmt.Errorf("%w: artifact was not written", ErrEncoding)
	}
	if err := os.Rename(v.partial, v.dest); err != nil {
		os.Remove(v.partial)
		return nil, fmt.Errorf("%w: finalize: %v", ErrEncoding, err)
	}
	return &encodedArtifact{
		Path:     v.dest,
		Frames:   v.frames,
		Width:    v.width,
		Height:   v.height,
		FileSize: info.Size(),
	}, nil
}
