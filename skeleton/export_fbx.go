package skeleton

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/mogaika/fbx/builders/bfbx73"

	"github.com/mogaika/bvh_player/utils"
	"github.com/mogaika/bvh_player/utils/fbxbuilder"
)

type FbxExporter struct {
	RootModelId int64
	JointModels []int64
}

// ExportFbx adds a LimbNode model per joint with its current local pose.
func (s *Skeleton) ExportFbx(f *fbxbuilder.FBXBuilder) *FbxExporter {
	fe := &FbxExporter{
		JointModels: make([]int64, len(s.joints)),
	}

	for i, joint := range s.joints {
		modelId := f.GenerateId()
		fe.JointModels[i] = modelId
		f.AddModelId(joint.name, modelId)

		rotation := mgl64.Vec3{}
		if !joint.IsRoot() {
			_, q := utils.DecomposeRigid(joint.LocalRotation())
			rotation = utils.RadiansToDegreeV3(utils.QuatToEuler(q))
		}
		pos := joint.offset

		model := bfbx73.Model(modelId, joint.name+"\x00\x01Model", "LimbNode").AddNodes(
			bfbx73.Version(232),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("Lcl Translation", "Lcl Translation", "", "A+", pos[0], pos[1], pos[2]),
				bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A+", rotation[0], rotation[1], rotation[2]),
				bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A+", float64(1), float64(1), float64(1)),
			),
			bfbx73.Shading(true),
			bfbx73.Culling("CullingOff"),
		)

		nodeAttribute := bfbx73.NodeAttribute(f.GenerateId(), joint.name+"\x00\x01NodeAttribute", "LimbNode").AddNodes(
			bfbx73.TypeFlags("Skeleton"),
		)

		f.AddObjects(model, nodeAttribute)
		f.AddConnections(bfbx73.C("OO", nodeAttribute.Properties[0].(int64), modelId))
	}

	for i, joint := range s.joints {
		if joint.IsRoot() {
			fe.RootModelId = fe.JointModels[i]
			continue
		}
		parentId, _ := f.GetModelId(joint.parent.name)
		f.AddConnections(bfbx73.C("OO", fe.JointModels[i], parentId))
	}

	return fe
}

// ExportFbxDocument builds a standalone document with the skeleton under the scene root.
func (s *Skeleton) ExportFbxDocument(settings fbxbuilder.Settings) *fbxbuilder.FBXBuilder {
	f := fbxbuilder.New(settings)

	fe := s.ExportFbx(f)
	f.AddConnections(bfbx73.C("OO", fe.RootModelId, 0))

	return f
}
