package armature

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/armature_poser/utils"
)

// One configuration of a bone. Head and Tail are world points, LocalHead and
// LocalTail are the same points expressed in the parent frame.
type BoneState struct {
	Head      mgl64.Vec3
	Tail      mgl64.Vec3
	LocalHead mgl64.Vec3
	LocalTail mgl64.Vec3

	WorldToBone   mgl64.Quat
	ParentToBone  mgl64.Quat
	WorldToParent utils.ParentTransform
}

type Bone struct {
	Name string
	// radians, applied when deriving the rest orientation
	Roll float64

	Rest BoneState
	Pose BoneState
}

// NewBone creates a unit bone along +Y at the origin, without parent.
func NewBone(name string) Bone {
	b := Bone{Name: name}
	b.Rest = BoneState{
		Tail:          utils.AxisY,
		LocalTail:     utils.AxisY,
		WorldToBone:   mgl64.QuatIdent(),
		ParentToBone:  mgl64.QuatIdent(),
		WorldToParent: utils.IdentityTransform(),
	}
	b.Pose = b.Rest
	return b
}

func (b *Bone) Length() float64 {
	return b.Rest.Tail.Sub(b.Rest.Head).Len()
}

func (b *Bone) PoseLength() float64 {
	return b.Pose.Tail.Sub(b.Pose.Head).Len()
}

// State returns the configuration matching the mode.
func (b *Bone) State(m Mode) *BoneState {
	if m == ModePose {
		return &b.Pose
	}
	return &b.Rest
}

// SetRestHeadAndTail moves the rest endpoints. On a zero length bone the
// points are stored, the previous orientation is kept and a
// *DegenerateBoneError is returned.
func (b *Bone) SetRestHeadAndTail(head, tail mgl64.Vec3) error {
	b.Rest.Head = head
	b.Rest.Tail = tail
	err := b.rebuildRestOrientation()
	b.Rest.LocalHead = b.Rest.WorldToParent.ToLocal(head)
	b.Rest.LocalTail = b.Rest.WorldToParent.ToLocal(tail)
	return err
}

func (b *Bone) SetLocalHeadAndTail(head, tail mgl64.Vec3) error {
	return b.SetRestHeadAndTail(b.Rest.WorldToParent.ToWorld(head), b.Rest.WorldToParent.ToWorld(tail))
}

func (b *Bone) SetRoll(roll float64) error {
	b.Roll = roll
	return b.rebuildRestOrientation()
}

func (b *Bone) rebuildRestOrientation() error {
	q, err := utils.DeriveBoneOrientation(b.Rest.Head, b.Rest.Tail, b.Roll)
	if err == nil {
		b.Rest.WorldToBone = q
	}
	b.Rest.ParentToBone = b.Rest.WorldToParent.Rotation.Inverse().Mul(b.Rest.WorldToBone).Normalize()
	if err != nil {
		return &DegenerateBoneError{Bone: b.Name, Err: err}
	}
	return nil
}

// SetWorldToParentRestTransform keeps the world rest points and re-expresses
// them in the new parent frame.
func (b *Bone) SetWorldToParentRestTransform(t utils.ParentTransform) {
	t.Rotation = t.Rotation.Normalize()
	b.Rest.WorldToParent = t
	b.Rest.LocalHead = t.ToLocal(b.Rest.Head)
	b.Rest.LocalTail = t.ToLocal(b.Rest.Tail)
	b.Rest.ParentToBone = t.Rotation.Inverse().Mul(b.Rest.WorldToBone).Normalize()
}

// SetWorldToParentPoseTransform makes the pose follow the parent: local pose
// points and ParentToBonePose are kept, world points are recomputed.
func (b *Bone) SetWorldToParentPoseTransform(t utils.ParentTransform) {
	t.Rotation = t.Rotation.Normalize()
	b.Pose.WorldToParent = t
	b.Pose.Head = t.ToWorld(b.Pose.LocalHead)
	b.Pose.Tail = t.ToWorld(b.Pose.LocalTail)
	b.Pose.WorldToBone = t.Rotation.Mul(b.Pose.ParentToBone).Normalize()
}

// RotateTailInPose rotates the pose tail around the pose head. The axis is in
// world space, the angle in radians. The bone keeps its twist: the world
// rotation is composed onto the current pose orientation.
func (b *Bone) RotateTailInPose(angle float64, axis mgl64.Vec3) {
	r := utils.AxisAngleQuat(axis, angle)
	b.Pose.Tail = b.Pose.Head.Add(r.Rotate(b.Pose.Tail.Sub(b.Pose.Head)))
	b.Pose.LocalTail = b.Pose.WorldToParent.ToLocal(b.Pose.Tail)
	b.Pose.WorldToBone = r.Mul(b.Pose.WorldToBone).Normalize()
	b.Pose.ParentToBone = b.Pose.WorldToParent.Rotation.Inverse().Mul(b.Pose.WorldToBone).Normalize()
}

// movePoseHead translates the pose so the head lands on head. Direction and
// orientation do not change.
func (b *Bone) movePoseHead(head mgl64.Vec3) {
	delta := head.Sub(b.Pose.Head)
	b.Pose.Head = head
	b.Pose.Tail = b.Pose.Tail.Add(delta)
	b.Pose.LocalHead = b.Pose.WorldToParent.ToLocal(b.Pose.Head)
	b.Pose.LocalTail = b.Pose.WorldToParent.ToLocal(b.Pose.Tail)
}

func (b *Bone) ResetPoseToRest() {
	b.Pose = b.Rest
}

// RestToPose is the parent-frame rotation that takes the rest orientation to
// the pose orientation.
func (b *Bone) RestToPose() mgl64.Quat {
	return b.Pose.ParentToBone.Mul(b.Rest.ParentToBone.Inverse()).Normalize()
}

func (b *Bone) parentTransform(m Mode) utils.ParentTransform {
	s := b.State(m)
	return utils.ParentTransform{Rotation: s.WorldToBone, Translation: s.Tail}
}
