package skeleton

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/bvh_player/utils/fbxbuilder"
	"github.com/mogaika/bvh_player/utils/gltfutils"
)

func newArm(t *testing.T) *Skeleton {
	t.Helper()
	s := newRooted(t)
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "Arm", JointPin, mgl64.Vec3{0, 1, 0}, AxisZ), "Hips"))
	require.NoError(t, s.AddToSkeleton(mustJoint(t, "ArmEnd", JointWeld, mgl64.Vec3{0, 1, 0}), "Arm"))
	require.NoError(t, s.ApplyPose([]float64{0, 0, 0, 0, 0, 0, math.Pi / 2}))
	s.Propagate()
	return s
}

func TestExportGLTF(t *testing.T) {
	s := newArm(t)
	doc := gltfutils.NewDocument()

	exported, err := s.ExportGLTF(doc)
	require.NoError(t, err)
	require.Len(t, exported.JointNodes, 3)

	root := doc.Nodes[exported.RootNode]
	assert.Equal(t, "Hips", root.Name)
	assert.Equal(t, []uint32{exported.JointNodes[1]}, root.Children)

	arm := doc.Nodes[exported.JointNodes[1]]
	assert.Equal(t, [3]float32{0, 1, 0}, arm.Translation)
	// quarter turn about z
	assert.InDelta(t, math.Sqrt2/2, arm.Rotation[2], 1e-6)
	assert.InDelta(t, math.Sqrt2/2, arm.Rotation[3], 1e-6)

	var buf bytes.Buffer
	require.NoError(t, gltfutils.ExportBinary(&buf, doc, exported.RootNode))

	decoded := new(gltf.Document)
	require.NoError(t, gltf.NewDecoder(&buf).Decode(decoded))
	require.Len(t, decoded.Nodes, 3)
	assert.Equal(t, "ArmEnd", decoded.Nodes[2].Name)
}

func TestExportFbx(t *testing.T) {
	s := newArm(t)

	f := s.ExportFbxDocument(fbxbuilder.Settings{FileName: "arm.fbx", UnitScale: fbxbuilder.UnitMeters, FrameRate: 30})
	for _, j := range s.Joints() {
		_, ok := f.GetModelId(j.Name())
		assert.True(t, ok, j.Name())
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("Kaydara FBX Binary")))

	defs := f.Root().GetNode("Definitions")
	require.NotNil(t, defs)
	for _, ot := range defs.GetNodes("ObjectType") {
		if ot.Properties[0].(string) == "Model" {
			assert.Equal(t, int32(3), ot.GetNode("Count").Properties[0])
		}
	}
}
