package player

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mogaika/bvh_player/bvh"
	"github.com/mogaika/bvh_player/kinerr"
)

const armMotion = `HIERARCHY
ROOT Hips
{
	OFFSET 0 0 0
	CHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation
	JOINT Arm
	{
		OFFSET 0 1 0
		CHANNELS 1 Zrotation
		End Site
		{
			OFFSET 0 1 0
		}
	}
}
MOTION
Frames: 2
Frame Time: 1
0 0 0 0 0 0 0
2 0 0 0 0 0 90
`

func writeMotion(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "arm.bvh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func loadArm(t *testing.T, loop bool) *Session {
	t.Helper()
	s, err := Load(writeMotion(t, t.TempDir(), armMotion), bvh.Options{}, loop)
	require.NoError(t, err)
	return s
}

func jointPosition(t *testing.T, p *Pose, name string) [3]float64 {
	t.Helper()
	for _, j := range p.Joints {
		if j.Name == name {
			return j.Position
		}
	}
	t.Fatalf("joint %q not in pose", name)
	return [3]float64{}
}

func TestLoadTestdata(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "walk.bvh"), bvh.Options{ConvertUnits: true}, true)
	require.NoError(t, err)

	info := s.Motion()
	assert.Equal(t, 3, info.Frames)
	assert.Equal(t, 15, info.DOFs)
	assert.True(t, info.Loop)

	joints := s.Joints()
	require.Len(t, joints, 7)
	assert.Equal(t, 0, joints[0].DOFBase)
	assert.Equal(t, 6, joints[1].DOFBase)
	assert.Equal(t, "Chest", joints[2].Parent)
	assert.Equal(t, 2, joints[2].Depth)
	assert.Contains(t, s.Describe(), "Left Up Leg")
}

func TestPoseAtInterpolates(t *testing.T) {
	s := loadArm(t, false)

	pose, err := s.PoseAt(0.5)
	require.NoError(t, err)
	assert.Equal(t, 0, pose.Frame)
	assert.InDelta(t, 1.0, jointPosition(t, pose, "Hips")[0], 1e-9)

	pose, err = s.PoseAt(1)
	require.NoError(t, err)
	assert.Equal(t, 1, pose.Frame)
	end := jointPosition(t, pose, "ArmEnd")
	assert.InDelta(t, 1.0, end[0], 1e-9)
	assert.InDelta(t, 1.0, end[1], 1e-9)
	require.Len(t, pose.Bones, 2)

	// clamped past the end without looping
	pose, err = s.PoseAt(10)
	require.NoError(t, err)
	assert.Equal(t, 1, pose.Frame)
}

func TestLoopTime(t *testing.T) {
	looping := loadArm(t, true)
	assert.Equal(t, 2.0, looping.Duration())
	assert.InDelta(t, 0.5, looping.LoopTime(2.5), 1e-12)
	assert.InDelta(t, 1.5, looping.LoopTime(-0.5), 1e-12)

	once := loadArm(t, false)
	assert.Equal(t, 2.5, once.LoopTime(2.5))

	sample, err := looping.Sample(2.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sample[0], 1e-9)
}

func TestPoseAtFrameAndState(t *testing.T) {
	s := loadArm(t, false)

	pose, err := s.PoseAtFrame(1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, pose.Time)

	_, err = s.PoseAtFrame(5)
	assert.ErrorIs(t, err, kinerr.ErrSampleOutOfRange)

	pose, err = s.Pose([]float64{0, 0, 0, 0, 0, 0, math.Pi / 2})
	require.NoError(t, err)
	end := jointPosition(t, pose, "ArmEnd")
	assert.InDelta(t, -1.0, end[0], 1e-9)
	assert.InDelta(t, 1.0, end[1], 1e-9)

	assert.Len(t, pose.State, 7)

	transforms := s.Transforms()
	require.Len(t, transforms, 3)
	assert.InDelta(t, -1.0, transforms[2].World.Col(3).X(), 1e-9)

	_, err = s.Pose([]float64{1})
	assert.True(t, kinerr.IsConfiguration(err))
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeMotion(t, dir, armMotion)
	s, err := Load(path, bvh.Options{}, false)
	require.NoError(t, err)

	writeMotion(t, dir, "HIERARCHY\nbroken\n")
	assert.Error(t, s.Reload())
	assert.Equal(t, 2, s.Motion().Frames)

	writeMotion(t, dir, strings.Replace(armMotion, "Frames: 2", "Frames: 1", 1))
	called := false
	s.OnReload(func(*Session) { called = true })
	require.NoError(t, s.Reload())
	assert.Equal(t, 1, s.Motion().Frames)
	assert.True(t, called)

	skel, frames, err := bvh.Parse(strings.NewReader(armMotion), bvh.Options{})
	require.NoError(t, err)
	assert.Error(t, NewSession(skel, frames, false).Reload())
}

func TestExport(t *testing.T) {
	s := loadArm(t, false)

	for _, format := range []string{FormatGLTF, FormatFBX} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, s.Export(&buf, format, 0.5))
			assert.NotZero(t, buf.Len())
		})
	}
	assert.Error(t, s.Export(&bytes.Buffer{}, "obj", 0))

	dir := t.TempDir()
	path, err := s.ExportFile(dir, FormatGLTF, 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "arm_1.000.glb"), path)
	assert.FileExists(t, path)
}

func TestWatchReloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	reloadDebounce = 10 * time.Millisecond
	dir := t.TempDir()
	path := writeMotion(t, dir, armMotion)
	s, err := Load(path, bvh.Options{}, false)
	require.NoError(t, err)

	reloaded := make(chan struct{}, 8)
	s.OnReload(func(*Session) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	changed := strings.Replace(armMotion, "Frames: 2", "Frames: 1", 1)
	require.Eventually(t, func() bool {
		require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))
		select {
		case <-reloaded:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.Motion().Frames)

	cancel()
	require.NoError(t, <-done)
	// let a pending debounce timer drain
	time.Sleep(50 * time.Millisecond)
}
