// Package player owns a loaded motion and serialises pose queries against it.
package player

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mogaika/bvh_player/bvh"
	"github.com/mogaika/bvh_player/kinerr"
	"github.com/mogaika/bvh_player/metrics"
	"github.com/mogaika/bvh_player/motion"
	"github.com/mogaika/bvh_player/skeleton"
	"github.com/mogaika/bvh_player/utils"
	"github.com/mogaika/bvh_player/utils/fbxbuilder"
	"github.com/mogaika/bvh_player/utils/gltfutils"
)

const (
	FormatGLTF = "gltf"
	FormatFBX  = "fbx"
)

// Session holds one skeleton and its frames. The skeleton is mutated by every
// pose query, so all access goes through mu.
type Session struct {
	id   uuid.UUID
	path string
	opts bvh.Options
	loop bool
	log  zerolog.Logger

	mu       sync.Mutex
	skel     *skeleton.Skeleton
	frames   *motion.FrameStore
	loadedAt time.Time

	listenersMu sync.Mutex
	listeners   []func(*Session)
}

// Load parses path and returns a session bound to it for later reloads.
func Load(path string, opts bvh.Options, loop bool) (*Session, error) {
	s := &Session{
		id:   uuid.New(),
		path: path,
		opts: opts,
		loop: loop,
	}
	s.log = utils.WithComponent("player").With().Str("session", s.id.String()).Str("file", filepath.Base(path)).Logger()
	if s.opts.Logger == nil {
		bvhLog := s.log.With().Str("component", "bvh").Logger()
		s.opts.Logger = &bvhLog
	}

	skel, frames, err := s.parse("initial")
	if err != nil {
		return nil, err
	}
	s.swap(skel, frames)
	return s, nil
}

// NewSession wraps already built data. Reload is unavailable on such sessions.
func NewSession(skel *skeleton.Skeleton, frames *motion.FrameStore, loop bool) *Session {
	s := &Session{
		id:   uuid.New(),
		loop: loop,
	}
	s.log = utils.WithComponent("player").With().Str("session", s.id.String()).Logger()
	s.swap(skel, frames)
	return s
}

func (s *Session) parse(trigger string) (*skeleton.Skeleton, *motion.FrameStore, error) {
	start := time.Now()
	skel, frames, err := bvh.ParseFile(s.path, s.opts)
	metrics.LoadDuration.Observe(time.Since(start).Seconds())
	metrics.LoadsTotal.WithLabelValues(trigger, metrics.Result(err)).Inc()
	if err != nil {
		s.log.Error().Err(err).Str("trigger", trigger).Msg("load failed")
		return nil, nil, err
	}
	s.log.Info().Str("trigger", trigger).Int("joints", skel.Len()).Int("frames", frames.NumFrames()).
		Dur("took", time.Since(start)).Msg("loaded")
	return skel, frames, nil
}

func (s *Session) swap(skel *skeleton.Skeleton, frames *motion.FrameStore) {
	skel.Propagate()

	s.mu.Lock()
	s.skel = skel
	s.frames = frames
	s.loadedAt = time.Now()
	s.mu.Unlock()

	metrics.Joints.Set(float64(skel.Len()))
	metrics.Frames.Set(float64(frames.NumFrames()))
}

// Reload parses the file again. The current data stays in place on failure.
func (s *Session) Reload() error {
	if s.path == "" {
		return errors.New("session is not bound to a file")
	}
	skel, frames, err := s.parse("reload")
	if err != nil {
		return err
	}
	s.swap(skel, frames)

	s.listenersMu.Lock()
	listeners := append(([]func(*Session))(nil), s.listeners...)
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
	return nil
}

// OnReload registers fn to run after every successful reload.
func (s *Session) OnReload(fn func(*Session)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

func (s *Session) ID() uuid.UUID { return s.id }
func (s *Session) Path() string  { return s.path }
func (s *Session) Loop() bool    { return s.loop }

func (s *Session) LoadedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedAt
}

func (s *Session) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames.Duration()
}

func (s *Session) FrameTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames.FrameTime()
}

func (s *Session) Motion() MotionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MotionInfo{
		Frames:    s.frames.NumFrames(),
		FrameTime: s.frames.FrameTime(),
		Duration:  s.frames.Duration(),
		DOFs:      s.frames.NumDOFs(),
		Loop:      s.loop,
	}
}

func (s *Session) Joints() []JointInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return describe(s.skel)
}

// Describe is the indented hierarchy dump.
func (s *Session) Describe() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skel.String()
}

// LoopTime wraps t into [0, duration) when looping is on.
func (s *Session) LoopTime(t float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopTime(t)
}

func (s *Session) loopTime(t float64) float64 {
	d := s.frames.Duration()
	if !s.loop || d <= 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return t
	}
	t = math.Mod(t, d)
	if t < 0 {
		t += d
	}
	return t
}

func (s *Session) Sample(t float64) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames.SampleAt(s.loopTime(t))
}

func (s *Session) frameIndex(t float64) int {
	if t <= 0 {
		return 0
	}
	idx := int(t / s.frames.FrameTime())
	if last := s.frames.NumFrames() - 1; idx > last {
		idx = last
	}
	return idx
}

// PoseAt samples at t, applies and propagates the result.
func (s *Session) PoseAt(t float64) (*Pose, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	t = s.loopTime(t)
	state, err := s.frames.SampleAt(t)
	if err == nil {
		err = s.apply(state)
	}
	metrics.PosesTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	metrics.PoseDuration.Observe(time.Since(start).Seconds())
	return snapshot(s.skel, state, t, s.frameIndex(t)), nil
}

func (s *Session) PoseAtFrame(index int) (*Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.frames.Frame(index)
	if err == nil {
		err = s.apply(state)
	}
	metrics.PosesTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	return snapshot(s.skel, state, float64(index)*s.frames.FrameTime(), index), nil
}

// Pose applies an explicit state vector laid out in registry order.
func (s *Session) Pose(state []float64) (*Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.apply(state); err != nil {
		return nil, err
	}
	return snapshot(s.skel, state, 0, -1), nil
}

// Transforms reads back world transforms of the last applied pose in pre-order.
func (s *Session) Transforms() []skeleton.JointTransform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skel.Transforms()
}

func (s *Session) apply(state []float64) error {
	if err := s.skel.ApplyPose(state); err != nil {
		return err
	}
	s.skel.Propagate()
	return nil
}

// Export writes the pose at t in the given format.
func (s *Session) Export(w io.Writer, format string, t float64) (err error) {
	defer func() {
		metrics.ExportsTotal.WithLabelValues(format, metrics.Result(err)).Inc()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.frames.SampleAt(s.loopTime(t))
	if err != nil && !errors.Is(err, kinerr.ErrEmptyStore) {
		return err
	}
	if state != nil {
		if err := s.apply(state); err != nil {
			return err
		}
	}

	switch format {
	case FormatGLTF:
		doc := gltfutils.NewDocument()
		exported, err := s.skel.ExportGLTF(doc)
		if err != nil {
			return errors.Wrapf(err, "Failed to export gltf")
		}
		return gltfutils.ExportBinary(w, doc, exported.RootNode)
	case FormatFBX:
		unit := fbxbuilder.UnitInches
		if s.opts.ConvertUnits {
			unit = fbxbuilder.UnitMeters
		}
		return s.skel.ExportFbxDocument(fbxbuilder.Settings{
			FileName:  s.exportName(FormatFBX, t),
			UnitScale: unit,
			FrameRate: 1 / s.frames.FrameTime(),
		}).Write(w)
	}
	return errors.Errorf("Unknown export format %q", format)
}

func (s *Session) exportName(format string, t float64) string {
	base := "skeleton"
	if s.path != "" {
		base = strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	}
	ext := format
	if format == FormatGLTF {
		ext = "glb"
	}
	return fmt.Sprintf("%s_%.3f.%s", base, t, ext)
}

// ExportFile writes the pose at t into dir and returns the created path.
func (s *Session) ExportFile(dir, format string, t float64) (string, error) {
	path := filepath.Join(dir, s.exportName(format, t))
	err := utils.SaveFileAtomic(path, func(w io.Writer) error {
		return s.Export(w, format, t)
	})
	if err != nil {
		return "", err
	}
	s.log.Info().Str("path", path).Str("format", format).Float64("time", t).Msg("exported")
	return path, nil
}
