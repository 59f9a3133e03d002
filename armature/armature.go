package armature

import (
	"log"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/armature_poser/utils"
)

type BoneID int

const NoBone BoneID = -1

type Mode int

const (
	ModeRest Mode = iota
	ModePose
)

func (m Mode) String() string {
	if m == ModePose {
		return "pose"
	}
	return "rest"
}

func ParseMode(s string) (Mode, bool) {
	switch s {
	case "rest", "Rest":
		return ModeRest, true
	case "pose", "Pose":
		return ModePose, true
	}
	return ModeRest, false
}

type record struct {
	bone     Bone
	parent   BoneID
	children []BoneID
	linked   bool
}

func (r *record) clone() *record {
	c := *r
	c.children = append([]BoneID(nil), r.children...)
	return &c
}

// Armature owns a forest of bones. Every mutation keeps the derived frames of
// the whole affected subtree consistent before returning.
type Armature struct {
	Name string

	bones  map[BoneID]*record
	roots  []BoneID
	nextId BoneID
	mode   Mode

	// bumped on structural and rest edits; pose is re-initialized on the
	// next switch from rest to pose when it lags behind
	generation     uint64
	poseGeneration uint64

	busy  bool
	hooks []ChangeHook
}

func New(name string) *Armature {
	return &Armature{
		Name:           name,
		bones:          make(map[BoneID]*record),
		generation:     1,
		poseGeneration: 0,
	}
}

func (a *Armature) Mode() Mode         { return a.mode }
func (a *Armature) Len() int           { return len(a.bones) }
func (a *Armature) Generation() uint64 { return a.generation }
func (a *Armature) Roots() []BoneID    { return append([]BoneID(nil), a.roots...) }

func (a *Armature) Has(id BoneID) bool {
	_, ok := a.bones[id]
	return ok
}

// Bone returns a copy; edits must go through the armature.
func (a *Armature) Bone(id BoneID) (Bone, bool) {
	if r, ok := a.bones[id]; ok {
		return r.bone, true
	}
	return Bone{}, false
}

func (a *Armature) Parent(id BoneID) BoneID {
	if r, ok := a.bones[id]; ok {
		return r.parent
	}
	return NoBone
}

func (a *Armature) Children(id BoneID) []BoneID {
	if r, ok := a.bones[id]; ok {
		return append([]BoneID(nil), r.children...)
	}
	return nil
}

func (a *Armature) IsLinked(id BoneID) bool {
	if r, ok := a.bones[id]; ok {
		return r.linked
	}
	return false
}

func (a *Armature) FindByName(name string) (BoneID, bool) {
	for _, id := range a.Order() {
		if a.bones[id].bone.Name == name {
			return id, true
		}
	}
	return NoBone, false
}

// Order lists bones depth first, roots in insertion order, children in their
// stored order. Parents always precede their children.
func (a *Armature) Order() []BoneID {
	order := make([]BoneID, 0, len(a.bones))
	var walk func(id BoneID)
	walk = func(id BoneID) {
		order = append(order, id)
		for _, c := range a.bones[id].children {
			walk(c)
		}
	}
	for _, root := range a.roots {
		walk(root)
	}
	return order
}

func (a *Armature) isAncestor(ancestor, id BoneID) bool {
	for p := a.Parent(id); p != NoBone; p = a.Parent(p) {
		if p == ancestor {
			return true
		}
	}
	return false
}

func (a *Armature) parentTransform(parent BoneID, m Mode) utils.ParentTransform {
	if r, ok := a.bones[parent]; ok {
		return r.bone.parentTransform(m)
	}
	return utils.IdentityTransform()
}

func (a *Armature) begin() error {
	if a.busy {
		return ErrCascadeInProgress
	}
	a.busy = true
	return nil
}

func (a *Armature) end() {
	a.busy = false
}

// propagate pushes the frames of id into its whole subtree. Linked children
// get their rest head pinned to the parent rest tail. Degenerate bones met
// on the way are collected and logged.
func (a *Armature) propagate(id BoneID, warnings *[]error) {
	r := a.bones[id]
	restT := r.bone.parentTransform(ModeRest)
	poseT := r.bone.parentTransform(ModePose)
	for _, cid := range r.children {
		c := a.bones[cid]
		c.bone.SetWorldToParentRestTransform(restT)
		if c.linked && c.bone.Rest.Head != r.bone.Rest.Tail {
			if err := c.bone.SetRestHeadAndTail(r.bone.Rest.Tail, c.bone.Rest.Tail); err != nil {
				a.warn(err, warnings)
			}
			// rest length changed, so the old pose of this bone is void
			c.bone.ResetPoseToRest()
		}
		c.bone.SetWorldToParentPoseTransform(poseT)
		a.propagate(cid, warnings)
	}
}

func (a *Armature) warn(err error, warnings *[]error) {
	log.Printf("[armature] %s: warning: %v", a.Name, err)
	if warnings != nil {
		*warnings = append(*warnings, err)
	}
}

type snapshot struct {
	bones          map[BoneID]*record
	roots          []BoneID
	nextId         BoneID
	generation     uint64
	poseGeneration uint64
}

func (a *Armature) snapshot() *snapshot {
	s := &snapshot{
		bones:          make(map[BoneID]*record, len(a.bones)),
		roots:          append([]BoneID(nil), a.roots...),
		nextId:         a.nextId,
		generation:     a.generation,
		poseGeneration: a.poseGeneration,
	}
	for id, r := range a.bones {
		s.bones[id] = r.clone()
	}
	return s
}

func (a *Armature) restore(s *snapshot) {
	a.bones = s.bones
	a.roots = s.roots
	a.nextId = s.nextId
	a.generation = s.generation
	a.poseGeneration = s.poseGeneration
}

// transaction runs f and rolls back every change if it fails.
func (a *Armature) transaction(f func() error) error {
	s := a.snapshot()
	if err := f(); err != nil {
		a.restore(s)
		return err
	}
	return nil
}

func removeId(ids []BoneID, id BoneID) []BoneID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

func vecNear(a, b mgl64.Vec3) bool {
	return utils.VecsApproxEqual(a, b, linkTolerance)
}
