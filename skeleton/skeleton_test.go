package skeleton

import (
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/bvh_player/kinerr"
)

const eps = 1e-9

func mustJoint(t *testing.T, name string, jtype JointType, offset mgl64.Vec3, axes ...Axis) *Joint {
	t.Helper()
	j, err := NewJoint(name, jtype, offset, axes)
	require.NoError(t, err)
	return j
}

func newRooted(t *testing.T) *Skeleton {
	t.Helper()
	s := New()
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "Hips", JointEulerSix, mgl64.Vec3{}, AxisZ, AxisX, AxisY), GroundName))
	return s
}

func assertVec(t *testing.T, expected, actual mgl64.Vec3) {
	t.Helper()
	for i := range expected {
		assert.InDelta(t, expected[i], actual[i], 1e-6, "component %d of %v", i, actual)
	}
}

func TestNewJointValidatesAxes(t *testing.T) {
	_, err := NewJoint("knee", JointPin, mgl64.Vec3{}, []Axis{AxisX, AxisY})
	assert.True(t, kinerr.IsUnsupportedJoint(err))

	_, err = NewJoint("knee", JointUndefined, mgl64.Vec3{}, nil)
	assert.True(t, kinerr.IsUnsupportedJoint(err))

	_, err = NewJoint("knee", JointPin, mgl64.Vec3{}, []Axis{Axis(7)})
	assert.True(t, kinerr.IsUnsupportedJoint(err))

	j, err := NewJoint("toe", JointWeld, mgl64.Vec3{1, 2, 3}, nil)
	require.NoError(t, err)
	assert.Empty(t, j.DOFValues())
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, j.Offset())
}

func TestJointTypeDOF(t *testing.T) {
	tests := []struct {
		jtype JointType
		width int
	}{
		{JointFree, 6},
		{JointEulerSix, 6},
		{JointPin, 1},
		{JointUJoint, 2},
		{JointGimbal, 3},
		{JointWeld, 0},
	}
	for _, tt := range tests {
		t.Run(tt.jtype.String(), func(t *testing.T) {
			layout, err := tt.jtype.DOF()
			require.NoError(t, err)
			assert.Equal(t, tt.width, layout.StateWidth())
		})
	}

	_, err := JointUndefined.DOF()
	assert.Error(t, err)
	_, err = JointTypeForRotations(4)
	assert.Error(t, err)
}

func TestSecondRootRejected(t *testing.T) {
	s := newRooted(t)
	err := s.AddToSkeleton(mustJoint(t, "Other", JointEulerSix, mgl64.Vec3{}, AxisX, AxisY, AxisZ), GroundName)
	assert.ErrorIs(t, err, kinerr.ErrRootExists)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "Hips", s.Root().Name())
}

func TestAddToSkeletonMissingParent(t *testing.T) {
	s := newRooted(t)
	err := s.AddToSkeleton(mustJoint(t, "Knee", JointPin, mgl64.Vec3{}, AxisX), "Thigh")
	assert.ErrorIs(t, err, kinerr.ErrParentNotFound)
	assert.Equal(t, 1, s.Len())
	assert.Nil(t, s.FindJoint("Knee"))
}

func TestAddToSkeletonDuplicateName(t *testing.T) {
	s := newRooted(t)
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "Spine", JointGimbal, mgl64.Vec3{}, AxisZ, AxisX, AxisY), "Hips"))
	err := s.AddToSkeleton(mustJoint(t, "Spine", JointPin, mgl64.Vec3{}, AxisX), "Hips")
	assert.ErrorIs(t, err, kinerr.ErrDuplicateName)
	assert.Equal(t, 2, s.Len())
}

func TestSixthChildRejected(t *testing.T) {
	s := newRooted(t)
	for i := 0; i < MaxChildren; i++ {
		require.NoError(t, s.AddToSkeleton(mustJoint(t, fmt.Sprintf("c%d", i), JointPin, mgl64.Vec3{}, AxisX), "Hips"))
	}

	err := s.AddToSkeleton(mustJoint(t, "c5", JointPin, mgl64.Vec3{}, AxisX), "Hips")
	assert.True(t, kinerr.IsCapacity(err))

	children := s.Root().Children()
	require.Len(t, children, MaxChildren)
	for i, c := range children {
		assert.Equal(t, fmt.Sprintf("c%d", i), c.Name())
	}
	assert.Equal(t, MaxChildren+1, s.Len())
	assert.Nil(t, s.FindJoint("c5"))
}

func TestPinChainPropagation(t *testing.T) {
	s := newRooted(t)
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "Arm", JointPin, mgl64.Vec3{0, 1, 0}, AxisZ), "Hips"))
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "ArmEnd", JointWeld, mgl64.Vec3{0, 1, 0}), "Arm"))

	require.NoError(t, s.ApplyPose([]float64{0, 0, 0, 0, 0, 0, math.Pi / 2}))
	s.Propagate()

	assertVec(t, mgl64.Vec3{0, 0, 0}, s.FindJoint("Hips").WorldPosition())
	assertVec(t, mgl64.Vec3{0, 1, 0}, s.FindJoint("Arm").WorldPosition())
	assertVec(t, mgl64.Vec3{-1, 1, 0}, s.FindJoint("ArmEnd").WorldPosition())
}

func TestCompositionOrderFollowsAxisOrder(t *testing.T) {
	s := newRooted(t)
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "Neck", JointUJoint, mgl64.Vec3{}, AxisZ, AxisX), "Hips"))
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "NeckEnd", JointWeld, mgl64.Vec3{0, 1, 0}), "Neck"))

	require.NoError(t, s.ApplyPose([]float64{0, 0, 0, 0, 0, 0, math.Pi / 2, math.Pi / 2}))
	s.Propagate()

	// Rz(90) * Rx(90) applied to (0,1,0): Rx gives (0,0,1), Rz keeps it.
	assertVec(t, mgl64.Vec3{0, 0, 1}, s.FindJoint("NeckEnd").WorldPosition())
}

func TestRootIgnoresOwnRotation(t *testing.T) {
	s := newRooted(t)
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "Spine", JointPin, mgl64.Vec3{0, 1, 0}, AxisX), "Hips"))

	require.NoError(t, s.ApplyPose([]float64{1, 2, 3, math.Pi / 2, math.Pi / 3, 0.5, 0}))
	s.Propagate()

	assertVec(t, mgl64.Vec3{1, 2, 3}, s.Root().WorldPosition())
	assertVec(t, mgl64.Vec3{1, 3, 3}, s.FindJoint("Spine").WorldPosition())
	assert.InDeltaSlice(t, []float64{math.Pi / 2, math.Pi / 3, 0.5}, s.Root().DOFValues(), eps)
}

func TestApplyPoseTranslationOrder(t *testing.T) {
	s := newRooted(t)
	require.NoError(t, s.Root().SetTranslationAxes([3]Axis{AxisZ, AxisX, AxisY}))

	require.NoError(t, s.ApplyPose([]float64{1, 2, 3, 0, 0, 0}))
	assert.Equal(t, mgl64.Vec3{2, 3, 1}, s.Root().Offset())

	assert.Error(t, s.Root().SetTranslationAxes([3]Axis{AxisX, AxisX, AxisY}))
}

func TestApplyPoseErrors(t *testing.T) {
	s := newRooted(t)
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "Spine", JointPin, mgl64.Vec3{}, AxisX), "Hips"))

	err := s.ApplyPose([]float64{0, 0, 0, 0, 0, 0})
	assert.True(t, kinerr.IsConfiguration(err))

	err = New().ApplyPose(nil)
	assert.True(t, kinerr.IsConfiguration(err))

	pinRoot := New()
	require.NoError(t, pinRoot.AddToSkeleton(mustJoint(t, "Hips", JointPin, mgl64.Vec3{}, AxisX), GroundName))
	err = pinRoot.ApplyPose([]float64{0})
	assert.True(t, kinerr.IsConfiguration(err))

	// failed pose must not touch the joints
	before := s.Root().Offset()
	err = s.ApplyPose([]float64{9, 9, 9, 9, 9, 9, 9, 9})
	assert.True(t, kinerr.IsConfiguration(err))
	assert.Equal(t, before, s.Root().Offset())
}

func TestTotalDOFAndRegistryOrder(t *testing.T) {
	s := newRooted(t)
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "LeftUpLeg", JointGimbal, mgl64.Vec3{}, AxisZ, AxisX, AxisY), "Hips"))
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "LeftLeg", JointPin, mgl64.Vec3{}, AxisX), "LeftUpLeg"))
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "RightUpLeg", JointUJoint, mgl64.Vec3{}, AxisZ, AxisX), "Hips"))
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "LeftLegEnd", JointWeld, mgl64.Vec3{}), "LeftLeg"))

	assert.Equal(t, 6+3+1+2, s.TotalDOF())

	names := make([]string, 0)
	for _, j := range s.Joints() {
		names = append(names, j.Name())
	}
	assert.Equal(t, []string{"Hips", "LeftUpLeg", "LeftLeg", "RightUpLeg", "LeftLegEnd"}, names)

	walked := make([]string, 0)
	s.Walk(func(j *Joint, _ int) { walked = append(walked, j.Name()) })
	assert.Equal(t, []string{"Hips", "LeftUpLeg", "LeftLeg", "LeftLegEnd", "RightUpLeg"}, walked)

	preOrder := make([]string, 0)
	for _, j := range s.PreOrder() {
		preOrder = append(preOrder, j.Name())
	}
	assert.Equal(t, walked, preOrder)
}

func TestBonesAndTransforms(t *testing.T) {
	s := newRooted(t)
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "Spine", JointPin, mgl64.Vec3{0, 2, 0}, AxisX), "Hips"))
	s.Propagate()

	bones := s.Bones()
	require.Len(t, bones, 1)
	assert.Equal(t, "Hips", bones[0].Parent)
	assert.Equal(t, "Spine", bones[0].Child)
	assertVec(t, mgl64.Vec3{0, 2, 0}, bones[0].To)

	transforms := s.Transforms()
	require.Len(t, transforms, 2)
	assert.Equal(t, "", transforms[0].Parent)
	assert.Equal(t, "Hips", transforms[1].Parent)

	assert.Contains(t, s.String(), "  Spine [pin]")
}

func TestSetDOFValuesLength(t *testing.T) {
	j := mustJoint(t, "Knee", JointPin, mgl64.Vec3{}, AxisX)
	assert.True(t, kinerr.IsConfiguration(j.SetDOFValues([]float64{1, 2})))
	require.NoError(t, j.SetDOFValues([]float64{0.5}))
	assert.Equal(t, []float64{0.5}, j.DOFValues())
}
