package bvh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/armature_poser/utils"
)

type ChannelType int

const (
	Xposition ChannelType = iota
	Yposition
	Zposition
	Xrotation
	Yrotation
	Zrotation
)

var channelNames = map[string]ChannelType{
	"Xposition": Xposition,
	"Yposition": Yposition,
	"Zposition": Zposition,
	"Xrotation": Xrotation,
	"Yrotation": Yrotation,
	"Zrotation": Zrotation,
}

func (c ChannelType) String() string {
	for name, v := range channelNames {
		if v == c {
			return name
		}
	}
	return fmt.Sprintf("ChannelType(%d)", int(c))
}

func (c ChannelType) IsRotation() bool {
	return c >= Xrotation
}

func (c ChannelType) Axis() mgl64.Vec3 {
	switch c {
	case Xposition, Xrotation:
		return utils.AxisX
	case Yposition, Yrotation:
		return utils.AxisY
	default:
		return utils.AxisZ
	}
}

type Joint struct {
	Name     string
	Parent   int // -1 for roots
	Offset   mgl64.Vec3
	Channels []ChannelType
	// offset of the End Site block, leaves only
	EndSite  *mgl64.Vec3
	Children []int

	// index of the first value of this joint in a motion row
	FirstChannel int
}

// Skeleton lists joints in file order, so a parent always precedes its
// children.
type Skeleton struct {
	Joints       []Joint
	ChannelCount int
}

func (s *Skeleton) addJoint(j Joint) int {
	id := len(s.Joints)
	j.FirstChannel = s.ChannelCount
	s.ChannelCount += len(j.Channels)
	s.Joints = append(s.Joints, j)
	if j.Parent >= 0 {
		s.Joints[j.Parent].Children = append(s.Joints[j.Parent].Children, id)
	}
	return id
}

// WorldHeads accumulates offsets down the tree and turns the result by the
// initial rotation.
func (s *Skeleton) WorldHeads(initial mgl64.Quat) []mgl64.Vec3 {
	heads := make([]mgl64.Vec3, len(s.Joints))
	for i, j := range s.Joints {
		offset := initial.Rotate(j.Offset)
		if j.Parent < 0 {
			heads[i] = offset
		} else {
			heads[i] = heads[j.Parent].Add(offset)
		}
	}
	return heads
}

// Motion holds the raw channel values, one row per frame.
type Motion struct {
	FrameCount int
	FrameTime  float64
	Values     [][]float64
}

type File struct {
	Skeleton Skeleton
	Motion   Motion
}
