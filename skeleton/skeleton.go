package skeleton

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/bvh_player/kinerr"
)

// GroundName is the parent name that makes a joint the root.
const GroundName = "$ground"

// Skeleton owns every joint. Joints are registered in declaration order,
// which is the order pose vectors are laid out in.
type Skeleton struct {
	root   *Joint
	joints []*Joint
}

func New() *Skeleton {
	return &Skeleton{joints: make([]*Joint, 0, 32)}
}

func (s *Skeleton) Root() *Joint { return s.root }

// Joints returns the registry in insertion order.
func (s *Skeleton) Joints() []*Joint {
	return append([]*Joint(nil), s.joints...)
}

func (s *Skeleton) Len() int { return len(s.joints) }

// FindJoint is a depth first search from the root.
func (s *Skeleton) FindJoint(name string) *Joint {
	if s.root == nil {
		return nil
	}
	return s.root.find(name)
}

func (s *Skeleton) AddToSkeleton(j *Joint, parentName string) error {
	if j == nil {
		return errors.New("nil joint")
	}
	if parentName == GroundName {
		if s.root != nil {
			return errors.Wrapf(kinerr.ErrRootExists, "joint %q, root %q", j.name, s.root.name)
		}
		s.root = j
		s.joints = append(s.joints, j)
		return nil
	}

	if s.FindJoint(j.name) != nil {
		return errors.Wrapf(kinerr.ErrDuplicateName, "joint %q", j.name)
	}
	parent := s.FindJoint(parentName)
	if parent == nil {
		return errors.Wrapf(kinerr.ErrParentNotFound, "joint %q, parent %q", j.name, parentName)
	}
	if err := parent.addChild(j); err != nil {
		return err
	}
	s.joints = append(s.joints, j)
	return nil
}

// TotalDOF is the length of a pose vector for this skeleton.
func (s *Skeleton) TotalDOF() int {
	total := 0
	for _, j := range s.joints {
		layout, err := j.jtype.DOF()
		if err == nil {
			total += layout.StateWidth()
		}
	}
	return total
}

// ApplyPose distributes a flattened state vector over the registry. Nothing is
// written unless the whole vector and registry are valid.
func (s *Skeleton) ApplyPose(state []float64) error {
	if len(s.joints) == 0 {
		return &kinerr.ConfigurationError{Index: -1, Reason: "skeleton is empty"}
	}
	if s.joints[0] != s.root {
		return &kinerr.ConfigurationError{Joint: s.joints[0].name, Index: 0, Reason: "registry does not start with the root"}
	}

	widths := make([]int, len(s.joints))
	total := 0
	for i, j := range s.joints {
		layout, err := j.jtype.DOF()
		if err != nil {
			return &kinerr.ConfigurationError{Joint: j.name, Index: i, Reason: err.Error()}
		}
		if i == 0 && !layout.Translation {
			return &kinerr.ConfigurationError{Joint: j.name, Index: i, Reason: fmt.Sprintf("root must be free or eulersix, got %v", j.jtype)}
		}
		if i != 0 && layout.Translation {
			return &kinerr.ConfigurationError{Joint: j.name, Index: i, Reason: fmt.Sprintf("%v joint is only allowed as root", j.jtype)}
		}
		widths[i] = layout.StateWidth()
		total += widths[i]
	}
	if len(state) != total {
		return &kinerr.ConfigurationError{Index: -1, Reason: fmt.Sprintf("state vector has %d values, skeleton needs %d", len(state), total)}
	}

	pos := 0
	for i, j := range s.joints {
		values := state[pos : pos+widths[i]]
		if i == 0 {
			offset := j.offset
			for k, axis := range j.translationAxes {
				offset[axis] = values[k]
			}
			j.offset = offset
			values = values[3:]
		}
		copy(j.dof, values)
		pos += widths[i]
	}
	return nil
}

// Propagate recomputes every world transform, parents before children.
func (s *Skeleton) Propagate() {
	if s.root != nil {
		s.root.updateAndRecurse()
	}
}

// Walk visits joints in pre-order.
func (s *Skeleton) Walk(fn func(j *Joint, depth int)) {
	var walk func(j *Joint, depth int)
	walk = func(j *Joint, depth int) {
		fn(j, depth)
		for _, c := range j.children {
			walk(c, depth+1)
		}
	}
	if s.root != nil {
		walk(s.root, 0)
	}
}

// PreOrder lists joints parents first, children in declaration order.
func (s *Skeleton) PreOrder() []*Joint {
	result := make([]*Joint, 0, len(s.joints))
	s.Walk(func(j *Joint, _ int) {
		result = append(result, j)
	})
	return result
}

type JointTransform struct {
	Name   string
	Parent string
	World  mgl64.Mat4
}

// Transforms reads back world transforms in pre-order.
func (s *Skeleton) Transforms() []JointTransform {
	result := make([]JointTransform, 0, len(s.joints))
	for _, j := range s.PreOrder() {
		t := JointTransform{Name: j.name, World: j.world}
		if j.parent != nil {
			t.Parent = j.parent.name
		}
		result = append(result, t)
	}
	return result
}

// Bone is the segment from a joint's parent origin to the joint origin.
type Bone struct {
	Parent string
	Child  string
	From   mgl64.Vec3
	To     mgl64.Vec3
}

func (s *Skeleton) Bones() []Bone {
	result := make([]Bone, 0, len(s.joints))
	s.Walk(func(j *Joint, _ int) {
		if j.parent == nil {
			return
		}
		result = append(result, Bone{
			Parent: j.parent.name,
			Child:  j.name,
			From:   j.parent.WorldPosition(),
			To:     j.WorldPosition(),
		})
	})
	return result
}

func (s *Skeleton) String() string {
	var buffer bytes.Buffer
	s.Walk(func(j *Joint, depth int) {
		spaces := strings.Repeat("  ", depth)
		fmt.Fprintf(&buffer, "%s%s [%v] offset %v axes %v\n", spaces, j.name, j.jtype, j.offset, j.axes)
	})
	return buffer.String()
}
