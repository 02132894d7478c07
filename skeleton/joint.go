package skeleton

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/bvh_player/kinerr"
	"github.com/mogaika/bvh_player/utils"
)

// MaxChildren is the joint valence limit.
const MaxChildren = 5

type Joint struct {
	name   string
	offset mgl64.Vec3
	jtype  JointType
	// axes[i] is the axis rotated by dof[i]; axes[0] is composed leftmost
	axes []Axis
	// order of the root position channels, X Y Z when not declared otherwise
	translationAxes [3]Axis

	parent   *Joint
	children []*Joint

	dof   []float64
	world mgl64.Mat4
}

// NewJoint validates that the axis order fits the joint type.
func NewJoint(name string, jtype JointType, offset mgl64.Vec3, axes []Axis) (*Joint, error) {
	layout, err := jtype.DOF()
	if err != nil {
		return nil, &kinerr.UnsupportedJointError{Joint: name, Reason: fmt.Sprintf("joint type %v", jtype)}
	}
	if len(axes) != layout.Rotations {
		return nil, &kinerr.UnsupportedJointError{
			Joint:  name,
			Reason: fmt.Sprintf("%v joint needs %d rotation axes, got %d", jtype, layout.Rotations, len(axes)),
		}
	}
	for _, a := range axes {
		if a < AxisX || a > AxisZ {
			return nil, &kinerr.UnsupportedJointError{Joint: name, Reason: fmt.Sprintf("bad axis %v", a)}
		}
	}

	return &Joint{
		name:            name,
		offset:          offset,
		jtype:           jtype,
		axes:            append([]Axis(nil), axes...),
		translationAxes: [3]Axis{AxisX, AxisY, AxisZ},
		dof:             make([]float64, layout.Rotations),
		world:           mgl64.Ident4(),
	}, nil
}

// SetTranslationAxes declares which offset component each of the three
// translation values of a pose vector overwrites.
func (j *Joint) SetTranslationAxes(axes [3]Axis) error {
	var seen [3]bool
	for _, a := range axes {
		if a < AxisX || a > AxisZ || seen[a] {
			return &kinerr.UnsupportedJointError{Joint: j.name, Reason: fmt.Sprintf("bad translation order %v", axes)}
		}
		seen[a] = true
	}
	j.translationAxes = axes
	return nil
}

func (j *Joint) Name() string              { return j.name }
func (j *Joint) Type() JointType           { return j.jtype }
func (j *Joint) Offset() mgl64.Vec3        { return j.offset }
func (j *Joint) Parent() *Joint            { return j.parent }
func (j *Joint) IsRoot() bool              { return j.parent == nil }
func (j *Joint) TranslationAxes() [3]Axis  { return j.translationAxes }
func (j *Joint) World() mgl64.Mat4         { return j.world }
func (j *Joint) WorldPosition() mgl64.Vec3 { return j.world.Col(3).Vec3() }

func (j *Joint) AxisOrder() []Axis {
	return append([]Axis(nil), j.axes...)
}

// Children must not be modified by the caller.
func (j *Joint) Children() []*Joint {
	return j.children
}

func (j *Joint) DOFValues() []float64 {
	return append([]float64(nil), j.dof...)
}

func (j *Joint) SetDOFValues(v []float64) error {
	if len(v) != len(j.dof) {
		return &kinerr.ConfigurationError{
			Joint:  j.name,
			Index:  -1,
			Reason: fmt.Sprintf("%v joint takes %d DOF values, got %d", j.jtype, len(j.dof), len(v)),
		}
	}
	copy(j.dof, v)
	return nil
}

func (j *Joint) SetOffset(v mgl64.Vec3) {
	j.offset = v
}

func (j *Joint) addChild(c *Joint) error {
	if len(j.children) >= MaxChildren {
		return errors.WithStack(&kinerr.CapacityError{What: "children", Owner: j.name, Limit: MaxChildren})
	}
	c.parent = j
	j.children = append(j.children, c)
	return nil
}

// LocalRotation composes one rotation per declared axis, first axis leftmost.
func (j *Joint) LocalRotation() mgl64.Mat4 {
	rot := mgl64.Ident4()
	for i, axis := range j.axes {
		rot = rot.Mul4(utils.AxisRotation(int(axis), j.dof[i]))
	}
	return rot
}

// updateAndRecurse expects the parent world transform to be current.
func (j *Joint) updateAndRecurse() {
	if j.parent == nil {
		j.world = mgl64.Translate3D(j.offset[0], j.offset[1], j.offset[2])
	} else {
		local := mgl64.Translate3D(j.offset[0], j.offset[1], j.offset[2]).Mul4(j.LocalRotation())
		j.world = j.parent.world.Mul4(local)
	}

	for _, c := range j.children {
		c.updateAndRecurse()
	}
}

func (j *Joint) find(name string) *Joint {
	if j.name == name {
		return j
	}
	for _, c := range j.children {
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}
