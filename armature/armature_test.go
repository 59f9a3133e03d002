package armature

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/armature_poser/utils"
)

// squared distance, see utils.VecsApproxEqual
const fixtureTolerance = 1e-6

func newChain(t *testing.T) (*Armature, []BoneID) {
	a := New("chain")
	tails := []mgl64.Vec3{{0, 20, 0}, {0, 20, 20}, {0, 20, 40}}
	names := []string{"Root", "Middle", "End"}
	ids := make([]BoneID, 0, 3)
	parent := NoBone
	for i, tail := range tails {
		b, err := a.CreateBone(parent, names[i], tail)
		if err != nil {
			t.Fatal(err)
		}
		id, err := a.AddBone(b, parent, parent != NoBone)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
		parent = id
	}
	return a, ids
}

func checkTails(t *testing.T, step string, a *Armature, ids []BoneID, m Mode, expected ...mgl64.Vec3) {
	for i, e := range expected {
		b, _ := a.Bone(ids[i])
		if got := b.State(m).Tail; !utils.VecsApproxEqual(got, e, fixtureTolerance) {
			t.Errorf("%s: %s tail=%v; expected %v", step, b.Name, got, e)
		}
	}
	if err := a.Validate(); err != nil {
		t.Errorf("%s: Validate()=%v", step, err)
	}
}

func TestRotationsCascade(t *testing.T) {
	a, ids := newChain(t)
	if err := a.SetMode(ModePose); err != nil {
		t.Fatal(err)
	}
	root, middle, end := ids[0], ids[1], ids[2]
	deg := mgl64.DegToRad

	checkTails(t, "no rotation", a, ids, ModePose,
		mgl64.Vec3{0, 20, 0}, mgl64.Vec3{0, 20, 20}, mgl64.Vec3{0, 20, 40})

	for _, step := range []struct {
		name     string
		rotate   func() error
		expected []mgl64.Vec3
	}{
		{"root -90 X parent", func() error { return a.RotateTailInParentFrame(root, deg(-90), utils.AxisX) },
			[]mgl64.Vec3{{0, 0, -20}, {0, 20, -20}, {0, 40, -20}}},
		{"middle 90 Z parent", func() error { return a.RotateTailInParentFrame(middle, deg(90), utils.AxisZ) },
			[]mgl64.Vec3{{0, 0, -20}, {0, 20, -20}, {0, 40, -20}}},
		{"end -90 Z parent", func() error { return a.RotateTailInParentFrame(end, deg(-90), utils.AxisZ) },
			[]mgl64.Vec3{{0, 0, -20}, {0, 20, -20}, {0, 20, -40}}},
		{"reset, root 90 Z world", func() error {
			if err := a.ResetPoseToRest(); err != nil {
				return err
			}
			return a.RotateTailInPose(root, deg(90), utils.AxisZ)
		}, []mgl64.Vec3{{-20, 0, 0}, {-20, 0, 20}, {-20, 0, 40}}},
		{"middle 180 X world", func() error { return a.RotateTailInPose(middle, deg(180), utils.AxisX) },
			[]mgl64.Vec3{{-20, 0, 0}, {-20, 0, -20}, {-20, 0, -40}}},
		{"end -90 Y world", func() error { return a.RotateTailInPose(end, deg(-90), utils.AxisY) },
			[]mgl64.Vec3{{-20, 0, 0}, {-20, 0, -20}, {0, 0, -20}}},
	} {
		if err := step.rotate(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		checkTails(t, step.name, a, ids, ModePose, step.expected...)
	}

	// rest never moves while posing
	checkTails(t, "rest", a, ids, ModeRest,
		mgl64.Vec3{0, 20, 0}, mgl64.Vec3{0, 20, 20}, mgl64.Vec3{0, 20, 40})
}

func TestPoseKeepsLength(t *testing.T) {
	a, ids := newChain(t)
	a.SetMode(ModePose)
	a.RotateTailInPose(ids[1], 1.3, mgl64.Vec3{1, 2, 3})
	a.PointTailAt(ids[2], mgl64.Vec3{5, 5, 5})
	for _, id := range ids {
		b, _ := a.Bone(id)
		if d := b.PoseLength() - b.Length(); d > 1e-9 || d < -1e-9 {
			t.Errorf("%s: pose length %v; expected %v", b.Name, b.PoseLength(), b.Length())
		}
	}
	b, _ := a.Bone(ids[2])
	dir := b.Pose.Tail.Sub(b.Pose.Head).Normalize()
	want := mgl64.Vec3{5, 5, 5}.Sub(b.Pose.Head).Normalize()
	if !utils.VecsApproxEqual(dir, want, 1e-12) {
		t.Errorf("PointTailAt direction=%v; expected %v", dir, want)
	}
}

func TestSetModeReinitializesPose(t *testing.T) {
	a, ids := newChain(t)
	a.SetMode(ModePose)
	a.RotateTailInPose(ids[0], mgl64.DegToRad(90), utils.AxisZ)

	// leaving pose and coming back without rest edits keeps the pose
	a.SetMode(ModeRest)
	a.SetMode(ModePose)
	b, _ := a.Bone(ids[0])
	if !utils.VecsApproxEqual(b.Pose.Tail, mgl64.Vec3{-20, 0, 0}, fixtureTolerance) {
		t.Errorf("pose lost on mode switch: tail=%v", b.Pose.Tail)
	}

	gen := a.Generation()
	a.SetMode(ModeRest)
	if err := a.SetRestTail(ids[2], mgl64.Vec3{0, 20, 50}); err != nil {
		t.Fatal(err)
	}
	if a.Generation() == gen {
		t.Errorf("Generation() unchanged after rest edit")
	}
	a.SetMode(ModePose)
	b, _ = a.Bone(ids[0])
	if !utils.VecsApproxEqual(b.Pose.Tail, b.Rest.Tail, fixtureTolerance) {
		t.Errorf("pose not reset after rest edit: tail=%v", b.Pose.Tail)
	}
	if done, _ := a.InitializePoseIfNeeded(); done {
		t.Errorf("InitializePoseIfNeeded()=true right after SetMode(pose)")
	}
}

func TestEditsInPoseKeepPose(t *testing.T) {
	a, ids := newChain(t)
	a.SetMode(ModePose)
	if err := a.RotateTailInPose(ids[0], mgl64.DegToRad(90), utils.AxisZ); err != nil {
		t.Fatal(err)
	}
	posed := []mgl64.Vec3{{-20, 0, 0}, {-20, 0, 20}, {-20, 0, 40}}

	eb, _ := a.CreateBone(NoBone, "Extra", mgl64.Vec3{5, 0, 0})
	extra, err := a.AddBone(eb, NoBone, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.RotateTailInPose(extra, mgl64.DegToRad(90), utils.AxisZ); err != nil {
		t.Fatal(err)
	}
	checkTails(t, "after AddBone", a, ids, ModePose, posed...)
	checkTails(t, "extra", a, []BoneID{extra}, ModePose, mgl64.Vec3{0, 5, 0})

	if err := a.SetRoll(ids[2], 0.3); err != nil {
		t.Fatal(err)
	}
	checkTails(t, "after SetRoll", a, ids, ModePose, posed...)
	if err := a.RotateTailInPose(ids[2], mgl64.DegToRad(-90), utils.AxisY); err != nil {
		t.Fatal(err)
	}
	checkTails(t, "end rotated", a, ids, ModePose,
		mgl64.Vec3{-20, 0, 0}, mgl64.Vec3{-20, 0, 20}, mgl64.Vec3{-40, 0, 20})

	// edits made in pose mode leave the pose current
	a.SetMode(ModeRest)
	a.SetMode(ModePose)
	checkTails(t, "after mode round trip", a, ids, ModePose,
		mgl64.Vec3{-20, 0, 0}, mgl64.Vec3{-20, 0, 20}, mgl64.Vec3{-40, 0, 20})
	if done, _ := a.InitializePoseIfNeeded(); done {
		t.Errorf("InitializePoseIfNeeded()=true after edits in pose mode")
	}
}

func TestSetLocalHeadAndTail(t *testing.T) {
	a, ids := newChain(t)
	if err := a.SetLocalHeadAndTail(ids[2], mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 5, 0}); err != nil {
		t.Fatal(err)
	}
	b, _ := a.Bone(ids[2])
	if !utils.VecsApproxEqual(b.Rest.Head, mgl64.Vec3{0, 20, 20}, fixtureTolerance) ||
		!utils.VecsApproxEqual(b.Rest.Tail, mgl64.Vec3{0, 20, 25}, fixtureTolerance) {
		t.Errorf("world rest %v,%v; expected (0,20,20),(0,20,25)", b.Rest.Head, b.Rest.Tail)
	}
	if !utils.VecsApproxEqual(b.Rest.LocalTail, mgl64.Vec3{0, 5, 0}, fixtureTolerance) {
		t.Errorf("local tail=%v; expected (0,5,0)", b.Rest.LocalTail)
	}
	if err := a.Validate(); err != nil {
		t.Error(err)
	}

	single := NewBone("single")
	single.SetWorldToParentRestTransform(utils.ParentTransform{
		Rotation:    utils.AxisAngleQuat(utils.AxisZ, mgl64.DegToRad(90)),
		Translation: mgl64.Vec3{1, 2, 3},
	})
	if err := single.SetLocalHeadAndTail(mgl64.Vec3{}, mgl64.Vec3{0, 2, 0}); err != nil {
		t.Fatal(err)
	}
	if single.Rest.Head != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("head=%v; expected (1,2,3)", single.Rest.Head)
	}
	if !utils.VecsApproxEqual(single.Rest.Tail, mgl64.Vec3{-1, 2, 3}, fixtureTolerance) {
		t.Errorf("tail=%v; expected (-1,2,3)", single.Rest.Tail)
	}
}

func TestLinkedHeadFollowsParent(t *testing.T) {
	a, ids := newChain(t)
	if err := a.SetRestTail(ids[0], mgl64.Vec3{5, 25, 0}); err != nil {
		t.Fatal(err)
	}
	b, _ := a.Bone(ids[1])
	if b.Rest.Head != (mgl64.Vec3{5, 25, 0}) {
		t.Errorf("linked head=%v; expected parent tail", b.Rest.Head)
	}
	if b.Rest.Tail != (mgl64.Vec3{0, 20, 20}) {
		t.Errorf("linked tail moved to %v", b.Rest.Tail)
	}
	if err := a.Validate(); err != nil {
		t.Error(err)
	}

	// moving the head of a linked bone drags the parent tail
	if err := a.SetRestHead(ids[2], mgl64.Vec3{1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	p, _ := a.Bone(ids[1])
	if p.Rest.Tail != (mgl64.Vec3{1, 1, 1}) {
		t.Errorf("parent tail=%v; expected dragged to (1,1,1)", p.Rest.Tail)
	}
	if err := a.Validate(); err != nil {
		t.Error(err)
	}
}

func TestUnlinkedChildKeepsWorldRest(t *testing.T) {
	a := New("free")
	rb, _ := a.CreateBone(NoBone, "root", mgl64.Vec3{0, 10, 0})
	root, _ := a.AddBone(rb, NoBone, false)
	cb, _ := a.CreateBoneWithHead(root, "child", mgl64.Vec3{3, 10, 0}, mgl64.Vec3{3, 15, 0})
	child, err := a.AddBone(cb, root, false)
	if err != nil {
		t.Fatal(err)
	}
	if a.IsLinked(child) {
		t.Errorf("IsLinked()=true for free child")
	}
	a.SetRestTail(root, mgl64.Vec3{0, 20, 0})
	c, _ := a.Bone(child)
	if c.Rest.Head != (mgl64.Vec3{3, 10, 0}) {
		t.Errorf("free child head=%v; expected (3,10,0)", c.Rest.Head)
	}
	if !utils.VecsApproxEqual(c.Rest.LocalHead, mgl64.Vec3{3, -10, 0}, fixtureTolerance) {
		t.Errorf("free child local head=%v; expected (3,-10,0)", c.Rest.LocalHead)
	}
}

func TestDegenerateBone(t *testing.T) {
	a := New("degenerate")
	b, err := a.CreateBoneWithHead(NoBone, "dot", mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	id, err := a.AddBone(b, NoBone, false)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := a.Bone(id)
	if !utils.IsFiniteQuat(got.Rest.WorldToBone) {
		t.Errorf("degenerate bone orientation %v", got.Rest.WorldToBone)
	}

	single := NewBone("single")
	if err := single.SetRestHeadAndTail(mgl64.Vec3{}, mgl64.Vec3{}); !IsDegenerate(err) {
		t.Errorf("SetRestHeadAndTail(zero)=%v; expected degenerate error", err)
	}
}

func TestStructuralErrors(t *testing.T) {
	a, _ := newChain(t)
	b := NewBone("orphan")
	if _, err := a.AddBone(b, BoneID(100), false); !IsStructural(err) {
		t.Errorf("AddBone(unknown parent)=%v; expected structural error", err)
	}
	if _, err := a.AddBone(b, NoBone, true); !IsStructural(err) {
		t.Errorf("AddBone(linked root)=%v; expected structural error", err)
	}
	if err := a.RemoveBone(BoneID(100)); !IsStructural(err) {
		t.Errorf("RemoveBone(unknown)=%v; expected structural error", err)
	}
	if err := a.RotateTailInPose(BoneID(100), 1, utils.AxisX); !IsStructural(err) {
		t.Errorf("RotateTailInPose(unknown)=%v; expected structural error", err)
	}
	if a.Len() != 3 {
		t.Errorf("Len()=%d; expected 3", a.Len())
	}
	if err := a.Validate(); err != nil {
		t.Error(err)
	}
}

func TestCascadeReentrancy(t *testing.T) {
	a, ids := newChain(t)
	var inner error
	calls := 0
	a.OnChange(func(a *Armature, ev ChangeEvent) {
		calls++
		if ev.Kind == ChangeRest && calls == 1 {
			// hooks run after the cascade, so mutating here is allowed
			inner = a.SetRoll(ids[0], 0.5)
		}
	})
	if err := a.SetRestTail(ids[2], mgl64.Vec3{0, 30, 40}); err != nil {
		t.Fatal(err)
	}
	if inner != nil {
		t.Errorf("mutation from hook failed: %v", inner)
	}

	a.busy = true
	if err := a.SetRoll(ids[0], 1); err != ErrCascadeInProgress {
		t.Errorf("SetRoll during cascade=%v; expected ErrCascadeInProgress", err)
	}
	a.busy = false
}

func TestModeParse(t *testing.T) {
	for _, test := range []struct {
		in   string
		mode Mode
		ok   bool
	}{
		{"rest", ModeRest, true},
		{"Pose", ModePose, true},
		{"bind", ModeRest, false},
	} {
		if m, ok := ParseMode(test.in); m != test.mode || ok != test.ok {
			t.Errorf("ParseMode(%q)=%v,%v; expected %v,%v", test.in, m, ok, test.mode, test.ok)
		}
	}
}
