// Package motion buffers sampled DOF frames and answers interpolated queries.
package motion

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/bvh_player/kinerr"
	"github.com/mogaika/bvh_player/utils"
)

// Number of leading DOFs holding root translation. Everything after is an angle.
const TranslationDOFs = 3

// Angle jump between neighbour samples treated as an euler seam crossing.
const seamThreshold = 6.0

type FrameStore struct {
	frameTime float64
	numDOFs   int
	frames    [][]float64
}

func NewFrameStore(numDOFs int, frameTime float64) (*FrameStore, error) {
	if numDOFs < 0 {
		return nil, errors.Errorf("negative DOF count %d", numDOFs)
	}
	if frameTime <= 0 || math.IsNaN(frameTime) || math.IsInf(frameTime, 0) {
		return nil, errors.Errorf("invalid frame time %v", frameTime)
	}
	return &FrameStore{
		frameTime: frameTime,
		numDOFs:   numDOFs,
		frames:    make([][]float64, 0, 64),
	}, nil
}

func (fs *FrameStore) FrameTime() float64 { return fs.frameTime }
func (fs *FrameStore) NumDOFs() int       { return fs.numDOFs }
func (fs *FrameStore) NumFrames() int     { return len(fs.frames) }
func (fs *FrameStore) StartTime() float64 { return 0 }

func (fs *FrameStore) Duration() float64 {
	return fs.frameTime * float64(len(fs.frames))
}

// AppendFrame parses one whitespace separated data line. Angles are stored in
// radians; convertUnits scales the root translation from inches to metres.
func (fs *FrameStore) AppendFrame(rawLine string, convertUnits bool) error {
	fields := strings.Fields(rawLine)
	if len(fields) > fs.numDOFs {
		return errors.WithStack(&kinerr.CapacityError{
			What:  "frame values",
			Owner: fmt.Sprintf("frame %d", len(fs.frames)),
			Limit: fs.numDOFs,
		})
	}
	if len(fields) < fs.numDOFs {
		return errors.WithStack(&kinerr.FormatError{
			State:    "frame data",
			Expected: fmt.Sprintf("%d values", fs.numDOFs),
			Got:      fmt.Sprintf("%d values", len(fields)),
		})
	}

	frame := make([]float64, fs.numDOFs)
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return errors.WithStack(&kinerr.FormatError{
				State:    "frame data",
				Expected: "number",
				Got:      field,
			})
		}
		if i < TranslationDOFs {
			if convertUnits {
				v *= utils.InchesToMeters
			}
		} else {
			v = utils.DegreesToRadians(v)
		}
		frame[i] = v
	}

	fs.frames = append(fs.frames, frame)
	return nil
}

// AppendValues stores an already converted frame.
func (fs *FrameStore) AppendValues(values []float64) error {
	if len(values) != fs.numDOFs {
		return errors.WithStack(&kinerr.CapacityError{
			What:  "frame values",
			Owner: fmt.Sprintf("frame %d", len(fs.frames)),
			Limit: fs.numDOFs,
		})
	}
	fs.frames = append(fs.frames, append([]float64(nil), values...))
	return nil
}

func (fs *FrameStore) Frame(index int) ([]float64, error) {
	if len(fs.frames) == 0 {
		return nil, errors.WithStack(kinerr.ErrEmptyStore)
	}
	if index < 0 || index >= len(fs.frames) {
		return nil, errors.Wrapf(kinerr.ErrSampleOutOfRange, "frame %d of %d", index, len(fs.frames))
	}
	return append([]float64(nil), fs.frames[index]...), nil
}

// InRange reports ErrSampleOutOfRange for times outside the recorded frames.
// SampleAt still answers those by clamping.
func (fs *FrameStore) InRange(t float64) error {
	if len(fs.frames) == 0 {
		return errors.WithStack(kinerr.ErrEmptyStore)
	}
	lastTime := fs.frameTime * float64(len(fs.frames)-1)
	if t < 0 || t > lastTime {
		return errors.Wrapf(kinerr.ErrSampleOutOfRange, "time %v, last frame at %v", t, lastTime)
	}
	return nil
}

// SampleAt interpolates between the two frames around t. Times past the last
// frame return it verbatim, negative times return the first frame.
func (fs *FrameStore) SampleAt(t float64) ([]float64, error) {
	if len(fs.frames) == 0 {
		return nil, errors.WithStack(kinerr.ErrEmptyStore)
	}
	if math.IsNaN(t) {
		return nil, errors.Errorf("sample time is NaN")
	}

	last := len(fs.frames) - 1
	if t <= 0 {
		return append([]float64(nil), fs.frames[0]...), nil
	}

	pos := t / fs.frameTime
	idx := math.Floor(pos)
	if idx >= float64(last) {
		return append([]float64(nil), fs.frames[last]...), nil
	}
	weight := pos - idx

	low, high := fs.frames[int(idx)], fs.frames[int(idx)+1]
	result := make([]float64, fs.numDOFs)
	for i := range result {
		if i < TranslationDOFs {
			result[i] = lerp(low[i], high[i], weight)
		} else {
			result[i] = lerpAngle(low[i], high[i], weight)
		}
	}
	return result, nil
}

func lerp(a, b, w float64) float64 {
	return (1-w)*a + w*b
}

// lerpAngle moves one side by a full turn when the samples straddle the ±π seam.
func lerpAngle(low, high, w float64) float64 {
	if math.Abs(low-high) > seamThreshold {
		if (low < 0 && high > 0) || low < -3 {
			low += 2 * math.Pi
		} else if (low > 0 && high < 0) || high < -3 {
			high += 2 * math.Pi
		}
	}
	return lerp(low, high, w)
}
