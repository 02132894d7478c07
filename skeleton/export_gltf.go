package skeleton

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/bvh_player/utils"
)

type GLTFSkeletonExported struct {
	// JointNodes is indexed like Joints()
	JointNodes []uint32
	RootNode   uint32
}

// ExportGLTF appends one node per joint carrying its current local pose.
func (s *Skeleton) ExportGLTF(doc *gltf.Document) (*GLTFSkeletonExported, error) {
	gse := &GLTFSkeletonExported{
		JointNodes: make([]uint32, len(s.joints)),
	}

	nodeOf := make(map[*Joint]uint32, len(s.joints))
	for i, joint := range s.joints {
		rotation := mgl64.QuatIdent()
		if !joint.IsRoot() {
			_, rotation = utils.DecomposeRigid(joint.LocalRotation())
		}

		node := &gltf.Node{
			Name:        joint.name,
			Translation: utils.Vec3To32(joint.offset),
			Rotation:    utils.QuatTo32(rotation),
			Scale:       [3]float32{1, 1, 1},
		}

		gse.JointNodes[i] = uint32(len(doc.Nodes))
		nodeOf[joint] = gse.JointNodes[i]
		doc.Nodes = append(doc.Nodes, node)
	}

	for _, joint := range s.joints {
		node := doc.Nodes[nodeOf[joint]]
		for _, c := range joint.children {
			node.Children = append(node.Children, nodeOf[c])
		}
	}
	if s.root != nil {
		gse.RootNode = nodeOf[s.root]
	}

	return gse, nil
}
