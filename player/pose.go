package player

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/bvh_player/skeleton"
)

type JointPose struct {
	Name     string      `json:"name"`
	Parent   string      `json:"parent,omitempty"`
	Position [3]float64  `json:"position"`
	World    [16]float64 `json:"world"`
}

type BonePose struct {
	Parent string     `json:"parent"`
	Child  string     `json:"child"`
	From   [3]float64 `json:"from"`
	To     [3]float64 `json:"to"`
}

// Pose is a propagated skeleton snapshot. Frame is the frame at or before Time.
type Pose struct {
	Time  float64 `json:"time"`
	Frame int     `json:"frame"`
	// State is the applied DOF vector in registry order.
	State  []float64   `json:"state"`
	Joints []JointPose `json:"joints"`
	Bones  []BonePose  `json:"bones"`
}

type JointInfo struct {
	Name    string             `json:"name"`
	Parent  string             `json:"parent,omitempty"`
	Depth   int                `json:"depth"`
	Type    skeleton.JointType `json:"type"`
	Axes    []skeleton.Axis    `json:"axes"`
	Offset  [3]float64         `json:"offset"`
	DOFBase int                `json:"dof_base"`
}

type MotionInfo struct {
	Frames    int     `json:"frames"`
	FrameTime float64 `json:"frame_time"`
	Duration  float64 `json:"duration"`
	DOFs      int     `json:"dofs"`
	Loop      bool    `json:"loop"`
}

func vec3(v mgl64.Vec3) [3]float64 {
	return [3]float64{v[0], v[1], v[2]}
}

func snapshot(s *skeleton.Skeleton, state []float64, t float64, frame int) *Pose {
	p := &Pose{Time: t, Frame: frame, State: append([]float64(nil), state...)}
	for _, jt := range s.Transforms() {
		p.Joints = append(p.Joints, JointPose{
			Name:     jt.Name,
			Parent:   jt.Parent,
			Position: vec3(jt.World.Col(3).Vec3()),
			World:    [16]float64(jt.World),
		})
	}
	for _, b := range s.Bones() {
		p.Bones = append(p.Bones, BonePose{
			Parent: b.Parent,
			Child:  b.Child,
			From:   vec3(b.From),
			To:     vec3(b.To),
		})
	}
	return p
}

// describe lists joints in registry order with the index of their first pose value.
func describe(s *skeleton.Skeleton) []JointInfo {
	depths := make(map[string]int, s.Len())
	s.Walk(func(j *skeleton.Joint, depth int) {
		depths[j.Name()] = depth
	})

	result := make([]JointInfo, 0, s.Len())
	base := 0
	for _, j := range s.Joints() {
		info := JointInfo{
			Name:    j.Name(),
			Depth:   depths[j.Name()],
			Type:    j.Type(),
			Axes:    j.AxisOrder(),
			Offset:  vec3(j.Offset()),
			DOFBase: base,
		}
		if p := j.Parent(); p != nil {
			info.Parent = p.Name()
		}
		if layout, err := j.Type().DOF(); err == nil {
			base += layout.StateWidth()
		}
		result = append(result, info)
	}
	return result
}
