package armature

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/armature_poser/utils"
)

// CreateBone makes a bone starting at the parent rest tail (or the origin
// for roots). The bone is not part of the armature until AddBone.
func (a *Armature) CreateBone(parent BoneID, name string, tail mgl64.Vec3) (Bone, error) {
	head := mgl64.Vec3{}
	if parent != NoBone {
		p, ok := a.bones[parent]
		if !ok {
			return Bone{}, structuralf("CreateBone", "unknown parent %d", parent)
		}
		head = p.bone.Rest.Tail
	}
	return a.CreateBoneWithHead(parent, name, head, tail)
}

func (a *Armature) CreateBoneWithHead(parent BoneID, name string, head, tail mgl64.Vec3) (Bone, error) {
	if parent != NoBone && !a.Has(parent) {
		return Bone{}, structuralf("CreateBone", "unknown parent %d", parent)
	}
	b := NewBone(name)
	b.SetWorldToParentRestTransform(a.parentTransform(parent, ModeRest))
	if err := b.SetRestHeadAndTail(head, tail); err != nil {
		a.warn(err, nil)
	}
	b.ResetPoseToRest()
	b.SetWorldToParentPoseTransform(a.parentTransform(parent, ModePose))
	return b, nil
}

// AddBone inserts b under parent (NoBone makes it a root). A linked bone has
// its rest head pinned to the parent rest tail from now on.
func (a *Armature) AddBone(b Bone, parent BoneID, linked bool) (BoneID, error) {
	if err := a.begin(); err != nil {
		return NoBone, err
	}
	id, warnings, err := a.addBone(b, parent, linked)
	a.end()
	if err != nil {
		return NoBone, err
	}
	a.notify(ChangeStructure, warnings, id)
	return id, nil
}

func (a *Armature) addBone(b Bone, parent BoneID, linked bool) (BoneID, []error, error) {
	var warnings []error
	if parent != NoBone {
		if !a.Has(parent) {
			return NoBone, nil, structuralf("AddBone", "unknown parent %d for bone %q", parent, b.Name)
		}
	} else if linked {
		return NoBone, nil, structuralf("AddBone", "root bone %q cannot be linked", b.Name)
	}

	id := a.nextId
	a.nextId++
	r := &record{bone: b, parent: parent, linked: linked}
	a.bones[id] = r
	if parent == NoBone {
		a.roots = append(a.roots, id)
	} else {
		p := a.bones[parent]
		p.children = append(p.children, id)
	}

	r.bone.SetWorldToParentRestTransform(a.parentTransform(parent, ModeRest))
	if linked {
		if err := r.bone.SetRestHeadAndTail(a.bones[parent].bone.Rest.Tail, r.bone.Rest.Tail); err != nil {
			a.warn(err, &warnings)
		}
	}
	r.bone.ResetPoseToRest()
	r.bone.SetWorldToParentPoseTransform(a.parentTransform(parent, ModePose))
	a.touchRest()
	return id, warnings, nil
}

// rebase attaches r to a new parent frame without moving any of its world
// points, rest or pose.
func (a *Armature) rebase(r *record) {
	r.bone.SetWorldToParentRestTransform(a.parentTransform(r.parent, ModeRest))
	t := a.parentTransform(r.parent, ModePose)
	r.bone.Pose.WorldToParent = t
	r.bone.Pose.LocalHead = t.ToLocal(r.bone.Pose.Head)
	r.bone.Pose.LocalTail = t.ToLocal(r.bone.Pose.Tail)
	r.bone.Pose.ParentToBone = t.Rotation.Inverse().Mul(r.bone.Pose.WorldToBone).Normalize()
	if r.linked && (r.parent == NoBone || !vecNear(r.bone.Rest.Head, a.bones[r.parent].bone.Rest.Tail)) {
		r.linked = false
	}
}

// RemoveBone deletes a bone. Its children move to its parent, after the
// parent's own children. Removing a root promotes its first child to root
// and hangs the remaining children under it. World points of the moved
// children do not change.
func (a *Armature) RemoveBone(id BoneID) error {
	if err := a.begin(); err != nil {
		return err
	}
	err := a.removeBone(id)
	a.end()
	if err != nil {
		return err
	}
	a.notify(ChangeStructure, nil, id)
	return nil
}

func (a *Armature) removeBone(id BoneID) error {
	r, ok := a.bones[id]
	if !ok {
		return structuralf("RemoveBone", "unknown bone %d", id)
	}
	children := r.children

	if r.parent != NoBone {
		p := a.bones[r.parent]
		p.children = append(removeId(p.children, id), children...)
		for _, cid := range children {
			a.bones[cid].parent = r.parent
		}
	} else {
		idx := 0
		for i, root := range a.roots {
			if root == id {
				idx = i
			}
		}
		if len(children) == 0 {
			a.roots = removeId(a.roots, id)
		} else {
			newRoot := children[0]
			a.roots[idx] = newRoot
			nr := a.bones[newRoot]
			nr.parent = NoBone
			nr.children = append(nr.children, children[1:]...)
			for _, cid := range children[1:] {
				a.bones[cid].parent = newRoot
			}
		}
	}

	for _, cid := range children {
		a.rebase(a.bones[cid])
	}
	delete(a.bones, id)
	a.touchRest()
	return nil
}

// ReparentBone moves a bone, with its subtree, under newParent. Only a linked
// bone moves: its rest and pose heads jump to the new parent tail.
func (a *Armature) ReparentBone(id, newParent BoneID) error {
	if err := a.begin(); err != nil {
		return err
	}
	var warnings []error
	err := a.reparentBone(id, newParent, &warnings)
	a.end()
	if err != nil {
		return err
	}
	a.notify(ChangeStructure, warnings, id)
	return nil
}

func (a *Armature) reparentBone(id, newParent BoneID, warnings *[]error) error {
	r, ok := a.bones[id]
	if !ok {
		return structuralf("ReparentBone", "unknown bone %d", id)
	}
	if newParent != NoBone {
		if !a.Has(newParent) {
			return structuralf("ReparentBone", "unknown parent %d", newParent)
		}
		if newParent == id || a.isAncestor(id, newParent) {
			return structuralf("ReparentBone", "bone %q cannot become a descendant of itself", r.bone.Name)
		}
	}
	if r.parent == newParent {
		return nil
	}

	if r.parent == NoBone {
		a.roots = removeId(a.roots, id)
	} else {
		p := a.bones[r.parent]
		p.children = removeId(p.children, id)
	}
	r.parent = newParent
	if newParent == NoBone {
		a.roots = append(a.roots, id)
		r.linked = false
	} else {
		p := a.bones[newParent]
		p.children = append(p.children, id)
	}

	r.bone.SetWorldToParentRestTransform(a.parentTransform(newParent, ModeRest))
	if r.linked {
		p := a.bones[newParent]
		if err := r.bone.SetRestHeadAndTail(p.bone.Rest.Tail, r.bone.Rest.Tail); err != nil {
			a.warn(err, warnings)
		}
		a.resetBonePose(r)
	}
	linked := r.linked
	a.rebase(r)
	r.linked = linked
	a.propagate(id, warnings)
	a.touchRest()
	return nil
}

// SetLinked toggles the head constraint of a bone. Linking pins the rest
// head to the parent rest tail immediately.
func (a *Armature) SetLinked(id BoneID, linked bool) error {
	if err := a.begin(); err != nil {
		return err
	}
	var warnings []error
	err := func() error {
		r, ok := a.bones[id]
		if !ok {
			return structuralf("SetLinked", "unknown bone %d", id)
		}
		if linked && r.parent == NoBone {
			return structuralf("SetLinked", "root bone %q cannot be linked", r.bone.Name)
		}
		r.linked = linked
		if linked {
			if err := r.bone.SetRestHeadAndTail(a.bones[r.parent].bone.Rest.Tail, r.bone.Rest.Tail); err != nil {
				a.warn(err, &warnings)
			}
			a.resetBonePose(r)
			a.propagate(id, &warnings)
			a.touchRest()
		}
		return nil
	}()
	a.end()
	if err != nil {
		return err
	}
	a.notify(ChangeStructure, warnings, id)
	return nil
}

// chain returns the bones from headId down to tailId, both included, if
// tailId descends from headId and no bone before tailId branches.
func (a *Armature) chain(headId, tailId BoneID) ([]BoneID, bool) {
	path := []BoneID{tailId}
	for p := a.Parent(tailId); p != NoBone; p = a.Parent(p) {
		path = append(path, p)
		if p == headId {
			break
		}
	}
	if path[len(path)-1] != headId || headId == tailId {
		return nil, false
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	for _, id := range path[:len(path)-1] {
		if len(a.bones[id].children) != 1 {
			return nil, false
		}
	}
	return path, true
}

// MergeBones replaces the unbranched chain headId..tailId with a single bone
// spanning headId's rest head to tailId's rest tail. The new bone takes the
// place of headId under its parent and adopts tailId's children. Its pose
// starts at the pose head of headId and points to the pose tail of tailId;
// linked children are moved onto its pose tail together with their subtrees.
func (a *Armature) MergeBones(headId, tailId BoneID) (BoneID, error) {
	if err := a.begin(); err != nil {
		return NoBone, err
	}
	var warnings []error
	var merged BoneID
	err := a.transaction(func() error {
		var err error
		merged, err = a.mergeBones(headId, tailId, &warnings)
		return err
	})
	a.end()
	if err != nil {
		return NoBone, err
	}
	a.notify(ChangeStructure, warnings, merged)
	return merged, nil
}

func (a *Armature) mergeBones(headId, tailId BoneID, warnings *[]error) (BoneID, error) {
	hr, ok := a.bones[headId]
	if !ok {
		return NoBone, structuralf("MergeBones", "unknown bone %d", headId)
	}
	tr, ok := a.bones[tailId]
	if !ok {
		return NoBone, structuralf("MergeBones", "unknown bone %d", tailId)
	}
	path, ok := a.chain(headId, tailId)
	if !ok {
		return NoBone, structuralf("MergeBones", "%q is not reached from %q through an unbranched chain",
			tr.bone.Name, hr.bone.Name)
	}

	parent := hr.parent
	b := NewBone(hr.bone.Name + " + " + tr.bone.Name)
	b.Roll = hr.bone.Roll
	b.SetWorldToParentRestTransform(a.parentTransform(parent, ModeRest))
	if err := b.SetRestHeadAndTail(hr.bone.Rest.Head, tr.bone.Rest.Tail); err != nil {
		a.warn(err, warnings)
	}
	b.ResetPoseToRest()
	b.SetWorldToParentPoseTransform(a.parentTransform(parent, ModePose))
	b.movePoseHead(hr.bone.Pose.Head)
	q := utils.RotationBetween(b.Pose.Tail.Sub(b.Pose.Head), tr.bone.Pose.Tail.Sub(hr.bone.Pose.Head))
	if angle, axis := utils.QuatToAxisAngle(q); angle != 0 {
		b.RotateTailInPose(angle, axis)
	}

	id := a.nextId
	a.nextId++
	nr := &record{bone: b, parent: parent, linked: hr.linked, children: tr.children}
	a.bones[id] = nr
	if parent == NoBone {
		for i, root := range a.roots {
			if root == headId {
				a.roots[i] = id
			}
		}
	} else {
		p := a.bones[parent]
		for i, c := range p.children {
			if c == headId {
				p.children[i] = id
			}
		}
	}
	for _, cid := range nr.children {
		c := a.bones[cid]
		c.parent = id
		a.rebase(c)
		if c.linked {
			c.bone.movePoseHead(nr.bone.Pose.Tail)
		}
	}
	for _, old := range path {
		delete(a.bones, old)
	}
	a.propagate(id, warnings)
	a.touchRest()
	return id, nil
}
