package skeleton

import (
	"fmt"

	"github.com/mogaika/bvh_player/kinerr"
)

type JointType int

const (
	JointUndefined JointType = iota
	JointFree
	// EulerSix is the BVH-native root: three translations then three euler angles.
	JointEulerSix
	JointPin
	JointUJoint
	JointGimbal
	// Weld is a zero-DOF end site.
	JointWeld
)

// Maximum rotation DOFs a single joint carries.
const MaxRotations = 3

type JointDOF struct {
	Rotations   int
	Translation bool
}

var jointTypeNames = map[JointType]string{
	JointUndefined: "undefined",
	JointFree:      "free",
	JointEulerSix:  "eulersix",
	JointPin:       "pin",
	JointUJoint:    "ujoint",
	JointGimbal:    "gimbal",
	JointWeld:      "weld",
}

func (t JointType) String() string {
	if name, ok := jointTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("JointType(%d)", int(t))
}

func (t JointType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// DOF returns rotation count and translation flag for every supported type.
func (t JointType) DOF() (JointDOF, error) {
	switch t {
	case JointFree, JointEulerSix:
		return JointDOF{Rotations: 3, Translation: true}, nil
	case JointPin:
		return JointDOF{Rotations: 1}, nil
	case JointUJoint:
		return JointDOF{Rotations: 2}, nil
	case JointGimbal:
		return JointDOF{Rotations: 3}, nil
	case JointWeld:
		return JointDOF{}, nil
	}
	return JointDOF{}, &kinerr.UnsupportedJointError{Reason: fmt.Sprintf("joint type %v has no DOF layout", t)}
}

// StateWidth is the number of values the joint consumes from a flattened pose vector.
func (d JointDOF) StateWidth() int {
	if d.Translation {
		return d.Rotations + 3
	}
	return d.Rotations
}

// JointTypeForRotations maps the rotation channel count of a non-root joint to its type.
func JointTypeForRotations(n int) (JointType, error) {
	switch n {
	case 1:
		return JointPin, nil
	case 2:
		return JointUJoint, nil
	case 3:
		return JointGimbal, nil
	}
	return JointUndefined, &kinerr.UnsupportedJointError{Reason: fmt.Sprintf("%d rotation channels", n)}
}

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

func (a Axis) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
