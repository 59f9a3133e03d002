package armature

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Exported node frame of a bone: origin at the head, axes from WorldToBone.
type nodeFrame struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
}

// localNodeFrame expresses the bone node frame relative to the node frame of
// its parent bone, as scene graph formats expect.
func (a *Armature) localNodeFrame(id BoneID, m Mode) nodeFrame {
	r := a.bones[id]
	s := r.bone.State(m)
	if r.parent == NoBone {
		return nodeFrame{Translation: s.Head, Rotation: s.WorldToBone}
	}
	ps := a.bones[r.parent].bone.State(m)
	inv := ps.WorldToBone.Inverse()
	return nodeFrame{
		Translation: inv.Rotate(s.Head.Sub(ps.Head)),
		Rotation:    inv.Mul(s.WorldToBone).Normalize(),
	}
}
