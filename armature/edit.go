package armature

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/armature_poser/utils"
)

// SetRestHeadAndTail moves a bone in rest. Moving the head of a linked bone
// drags the parent rest tail along (and with it every linked sibling).
func (a *Armature) SetRestHeadAndTail(id BoneID, head, tail mgl64.Vec3) error {
	return a.editRest("SetRestHeadAndTail", id, func(r *record, warnings *[]error) {
		if r.linked && r.bone.Rest.Head != head {
			p := a.bones[r.parent]
			if err := p.bone.SetRestHeadAndTail(p.bone.Rest.Head, head); err != nil {
				a.warn(err, warnings)
			}
			a.resetBonePose(p)
			a.propagate(r.parent, warnings)
		}
		if err := r.bone.SetRestHeadAndTail(head, tail); err != nil {
			a.warn(err, warnings)
		}
	})
}

func (a *Armature) SetRestHead(id BoneID, head mgl64.Vec3) error {
	b, ok := a.Bone(id)
	if !ok {
		return structuralf("SetRestHead", "unknown bone %d", id)
	}
	return a.SetRestHeadAndTail(id, head, b.Rest.Tail)
}

func (a *Armature) SetRestTail(id BoneID, tail mgl64.Vec3) error {
	b, ok := a.Bone(id)
	if !ok {
		return structuralf("SetRestTail", "unknown bone %d", id)
	}
	return a.SetRestHeadAndTail(id, b.Rest.Head, tail)
}

// SetLocalHeadAndTail takes points in the parent rest frame.
func (a *Armature) SetLocalHeadAndTail(id BoneID, head, tail mgl64.Vec3) error {
	r, ok := a.bones[id]
	if !ok {
		return structuralf("SetLocalHeadAndTail", "unknown bone %d", id)
	}
	t := r.bone.Rest.WorldToParent
	return a.SetRestHeadAndTail(id, t.ToWorld(head), t.ToWorld(tail))
}

func (a *Armature) SetRoll(id BoneID, roll float64) error {
	return a.editRest("SetRoll", id, func(r *record, warnings *[]error) {
		if err := r.bone.SetRoll(roll); err != nil {
			a.warn(err, warnings)
		}
	})
}

func (a *Armature) editRest(op string, id BoneID, f func(r *record, warnings *[]error)) error {
	if err := a.begin(); err != nil {
		return err
	}
	r, ok := a.bones[id]
	if !ok {
		a.end()
		return structuralf(op, "unknown bone %d", id)
	}
	var warnings []error
	f(r, &warnings)
	a.resetBonePose(r)
	a.propagate(id, &warnings)
	a.touchRest()
	a.end()
	a.notify(ChangeRest, warnings, id)
	return nil
}

// resetBonePose drops the pose of a single bone back to its rest relation
// with the parent pose.
func (a *Armature) resetBonePose(r *record) {
	r.bone.ResetPoseToRest()
	r.bone.SetWorldToParentPoseTransform(a.parentTransform(r.parent, ModePose))
}

func (a *Armature) editPose(op string, id BoneID, f func(r *record)) error {
	if err := a.begin(); err != nil {
		return err
	}
	r, ok := a.bones[id]
	if !ok {
		a.end()
		return structuralf(op, "unknown bone %d", id)
	}
	f(r)
	var warnings []error
	a.propagate(id, &warnings)
	a.end()
	a.notify(ChangePose, warnings, id)
	return nil
}

// RotateTailInPose rotates the pose tail of a bone around its pose head by
// angle radians around a world axis. Descendants follow.
func (a *Armature) RotateTailInPose(id BoneID, angle float64, worldAxis mgl64.Vec3) error {
	return a.editPose("RotateTailInPose", id, func(r *record) {
		r.bone.RotateTailInPose(angle, worldAxis)
	})
}

// RotateTailInParentFrame is RotateTailInPose with the axis given in the
// current pose frame of the parent.
func (a *Armature) RotateTailInParentFrame(id BoneID, angle float64, axis mgl64.Vec3) error {
	return a.editPose("RotateTailInParentFrame", id, func(r *record) {
		r.bone.RotateTailInPose(angle, r.bone.Pose.WorldToParent.Rotation.Rotate(axis))
	})
}

// PointTailAt turns the pose of a bone so that it points to target.
func (a *Armature) PointTailAt(id BoneID, target mgl64.Vec3) error {
	return a.editPose("PointTailAt", id, func(r *record) {
		q := utils.RotationBetween(r.bone.Pose.Tail.Sub(r.bone.Pose.Head), target.Sub(r.bone.Pose.Head))
		angle, axis := utils.QuatToAxisAngle(q)
		r.bone.RotateTailInPose(angle, axis)
	})
}

// ApplyPoseRotations sets the whole pose from rest: each listed bone is
// turned, parents first, by its rotation expressed in the parent pose frame.
// Unlisted bones keep their rest relation to their parent.
func (a *Armature) ApplyPoseRotations(rotations map[BoneID]mgl64.Quat) error {
	if err := a.begin(); err != nil {
		return err
	}
	for id := range rotations {
		if !a.Has(id) {
			a.end()
			return structuralf("ApplyPoseRotations", "unknown bone %d", id)
		}
	}

	a.resetPoseToRest()
	var warnings []error
	for _, id := range a.Order() {
		q, ok := rotations[id]
		if !ok {
			continue
		}
		angle, axis := utils.QuatToAxisAngle(q)
		if angle == 0 {
			continue
		}
		r := a.bones[id]
		r.bone.RotateTailInPose(angle, r.bone.Pose.WorldToParent.Rotation.Rotate(axis))
		a.propagate(id, &warnings)
	}
	a.end()
	a.notify(ChangePose, warnings)
	return nil
}

// RestToPose returns the pose rotations of all bones, suitable for
// ApplyPoseRotations.
func (a *Armature) RestToPose() map[BoneID]mgl64.Quat {
	res := make(map[BoneID]mgl64.Quat, len(a.bones))
	for id, r := range a.bones {
		res[id] = r.bone.RestToPose()
	}
	return res
}
