package armature

import (
	"math"

	"github.com/pkg/errors"

	"github.com/mogaika/armature_poser/utils"
)

const (
	lengthTolerance      = 1e-6
	compositionTolerance = 1e-4
	// squared, frames are 1e-6 apart at most
	translationTolerance2 = 1e-12
)

// Validate checks the tree structure and every per-bone invariant.
func (a *Armature) Validate() error {
	seen := make(map[BoneID]bool, len(a.bones))
	for _, id := range a.Order() {
		if seen[id] {
			return errors.Errorf("Bone %d reached twice", id)
		}
		seen[id] = true
	}
	if len(seen) != len(a.bones) {
		return errors.Errorf("%d bones are not reachable from roots", len(a.bones)-len(seen))
	}

	for id, r := range a.bones {
		b := &r.bone
		if r.parent != NoBone {
			p, ok := a.bones[r.parent]
			if !ok {
				return errors.Errorf("Bone %q has unknown parent %d", b.Name, r.parent)
			}
			found := false
			for _, c := range p.children {
				found = found || c == id
			}
			if !found {
				return errors.Errorf("Bone %q is missing from children of %q", b.Name, p.bone.Name)
			}
			if r.linked && !vecNear(b.Rest.Head, p.bone.Rest.Tail) {
				return errors.Errorf("Linked bone %q head %v is away from parent tail %v",
					b.Name, b.Rest.Head, p.bone.Rest.Tail)
			}
			if r.linked && a.poseGeneration == a.generation && !vecNear(b.Pose.Head, p.bone.Pose.Tail) {
				return errors.Errorf("Linked bone %q pose head %v is away from parent pose tail %v",
					b.Name, b.Pose.Head, p.bone.Pose.Tail)
			}
		} else if r.linked {
			return errors.Errorf("Root bone %q is linked", b.Name)
		}

		if diff := math.Abs(b.Length() - b.PoseLength()); diff > lengthTolerance {
			return errors.Errorf("Bone %q pose length differs from rest by %v", b.Name, diff)
		}

		for _, m := range []Mode{ModeRest, ModePose} {
			s := b.State(m)
			expected := a.parentTransform(r.parent, m)
			if !utils.QuatsApproxEqual(s.WorldToParent.Rotation, expected.Rotation, compositionTolerance) ||
				!utils.VecsApproxEqual(s.WorldToParent.Translation, expected.Translation, translationTolerance2) {
				return errors.Errorf("Bone %q %v parent frame is stale", b.Name, m)
			}
			composed := s.WorldToParent.Rotation.Mul(s.ParentToBone)
			if !utils.QuatsApproxEqual(s.WorldToBone, composed, compositionTolerance) {
				return errors.Errorf("Bone %q %v rotation %v does not match parent composition %v",
					b.Name, m, s.WorldToBone, composed)
			}
		}
	}
	return nil
}
