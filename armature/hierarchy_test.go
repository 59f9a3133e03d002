package armature

import (
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/armature_poser/utils"
)

// branched builds
//
//	root -> spine -> neck
//	             \-> arm -> hand
func branched(t *testing.T) (*Armature, map[string]BoneID) {
	a := New("branched")
	ids := make(map[string]BoneID)
	add := func(name, parent string, head, tail mgl64.Vec3, linked bool) {
		p := NoBone
		if parent != "" {
			p = ids[parent]
		}
		b, err := a.CreateBoneWithHead(p, name, head, tail)
		if err != nil {
			t.Fatal(err)
		}
		if ids[name], err = a.AddBone(b, p, linked); err != nil {
			t.Fatal(err)
		}
	}
	add("root", "", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 10, 0}, false)
	add("spine", "root", mgl64.Vec3{0, 10, 0}, mgl64.Vec3{0, 20, 0}, true)
	add("neck", "spine", mgl64.Vec3{0, 20, 0}, mgl64.Vec3{0, 25, 0}, true)
	add("arm", "spine", mgl64.Vec3{2, 18, 0}, mgl64.Vec3{10, 18, 0}, false)
	add("hand", "arm", mgl64.Vec3{10, 18, 0}, mgl64.Vec3{13, 18, 0}, true)
	return a, ids
}

func names(a *Armature, ids []BoneID) []string {
	res := make([]string, len(ids))
	for i, id := range ids {
		b, _ := a.Bone(id)
		res[i] = b.Name
	}
	return res
}

func TestOrder(t *testing.T) {
	a, _ := branched(t)
	got := names(a, a.Order())
	expected := []string{"root", "spine", "neck", "arm", "hand"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Order()=%v; expected %v", got, expected)
	}
}

func TestRemoveBone(t *testing.T) {
	a, ids := branched(t)
	if err := a.RemoveBone(ids["spine"]); err != nil {
		t.Fatal(err)
	}
	if got := names(a, a.Children(ids["root"])); !reflect.DeepEqual(got, []string{"neck", "arm"}) {
		t.Errorf("root children=%v; expected [neck arm]", got)
	}
	neck, _ := a.Bone(ids["neck"])
	if neck.Rest.Head != (mgl64.Vec3{0, 20, 0}) || neck.Rest.Tail != (mgl64.Vec3{0, 25, 0}) {
		t.Errorf("neck moved to %v,%v", neck.Rest.Head, neck.Rest.Tail)
	}
	if a.IsLinked(ids["neck"]) {
		t.Errorf("neck still linked after its parent went away")
	}
	if err := a.Validate(); err != nil {
		t.Error(err)
	}
}

func TestRemoveRootPromotesFirstChild(t *testing.T) {
	a, ids := branched(t)
	a.RemoveBone(ids["root"])
	a.RemoveBone(ids["spine"])
	roots := names(a, a.Roots())
	if !reflect.DeepEqual(roots, []string{"neck"}) {
		t.Fatalf("Roots()=%v; expected [neck]", roots)
	}
	if got := a.Parent(ids["arm"]); got != ids["neck"] {
		t.Errorf("Parent(arm)=%v; expected neck", got)
	}
	if a.IsLinked(ids["neck"]) {
		t.Errorf("promoted root is linked")
	}
	arm, _ := a.Bone(ids["arm"])
	if arm.Rest.Head != (mgl64.Vec3{2, 18, 0}) {
		t.Errorf("arm moved to %v", arm.Rest.Head)
	}
	if err := a.Validate(); err != nil {
		t.Error(err)
	}
}

func TestReparentBone(t *testing.T) {
	a, ids := branched(t)
	if err := a.ReparentBone(ids["arm"], ids["neck"]); err != nil {
		t.Fatal(err)
	}
	arm, _ := a.Bone(ids["arm"])
	if arm.Rest.Head != (mgl64.Vec3{2, 18, 0}) {
		t.Errorf("unlinked bone moved to %v on reparent", arm.Rest.Head)
	}

	// a linked bone jumps to the new parent tail
	if err := a.ReparentBone(ids["hand"], ids["neck"]); err != nil {
		t.Fatal(err)
	}
	hand, _ := a.Bone(ids["hand"])
	if hand.Rest.Head != (mgl64.Vec3{0, 25, 0}) || hand.Rest.Tail != (mgl64.Vec3{13, 18, 0}) {
		t.Errorf("linked bone after reparent %v,%v", hand.Rest.Head, hand.Rest.Tail)
	}
	if err := a.Validate(); err != nil {
		t.Error(err)
	}
}

func TestReparentCycle(t *testing.T) {
	a, ids := branched(t)
	before := a.Records(true)
	gen := a.Generation()
	for _, target := range []string{"hand", "spine"} {
		err := a.ReparentBone(ids["spine"], ids[target])
		if !IsStructural(err) {
			t.Errorf("ReparentBone(spine, %s)=%v; expected structural error", target, err)
		}
	}
	if !reflect.DeepEqual(a.Records(true), before) || a.Generation() != gen {
		t.Errorf("armature changed after rejected reparent")
	}
}

func TestMergeBones(t *testing.T) {
	a, ids := New("merge"), map[string]BoneID{}
	parent := NoBone
	for i, name := range []string{"a", "b", "c", "d"} {
		b, _ := a.CreateBone(parent, name, mgl64.Vec3{0, float64(i+1) * 10, 0})
		id, err := a.AddBone(b, parent, parent != NoBone)
		if err != nil {
			t.Fatal(err)
		}
		ids[name] = id
		parent = id
	}

	merged, err := a.MergeBones(ids["a"], ids["c"])
	if err != nil {
		t.Fatal(err)
	}
	m, _ := a.Bone(merged)
	if m.Name != "a + c" {
		t.Errorf("merged name %q; expected %q", m.Name, "a + c")
	}
	if m.Rest.Head != (mgl64.Vec3{}) || m.Rest.Tail != (mgl64.Vec3{0, 30, 0}) {
		t.Errorf("merged bone %v,%v", m.Rest.Head, m.Rest.Tail)
	}
	if a.Len() != 2 {
		t.Errorf("Len()=%d; expected 2", a.Len())
	}
	for _, gone := range []string{"a", "b", "c"} {
		if a.Has(ids[gone]) {
			t.Errorf("%s still present after merge", gone)
		}
	}
	if a.Parent(ids["d"]) != merged {
		t.Errorf("d not adopted by merged bone")
	}
	if !reflect.DeepEqual(a.Roots(), []BoneID{merged}) {
		t.Errorf("Roots()=%v; expected merged bone", a.Roots())
	}
	if err := a.Validate(); err != nil {
		t.Error(err)
	}
}

func TestMergeBonesInPose(t *testing.T) {
	a, ids := New("merge"), map[string]BoneID{}
	parent := NoBone
	for i, name := range []string{"a", "b", "c", "d"} {
		b, _ := a.CreateBone(parent, name, mgl64.Vec3{0, float64(i+1) * 10, 0})
		id, err := a.AddBone(b, parent, parent != NoBone)
		if err != nil {
			t.Fatal(err)
		}
		ids[name] = id
		parent = id
	}
	a.SetMode(ModePose)
	if err := a.RotateTailInPose(ids["b"], mgl64.DegToRad(90), mgl64.Vec3{0, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if c, _ := a.Bone(ids["c"]); !utils.VecsApproxEqual(c.Pose.Tail, mgl64.Vec3{-20, 10, 0}, 1e-9) {
		t.Fatalf("c pose tail=%v; expected (-20,10,0)", c.Pose.Tail)
	}

	merged, err := a.MergeBones(ids["a"], ids["c"])
	if err != nil {
		t.Fatal(err)
	}
	m, _ := a.Bone(merged)
	d, _ := a.Bone(ids["d"])
	if m.Pose.Head != (mgl64.Vec3{}) {
		t.Errorf("merged pose head=%v; expected origin", m.Pose.Head)
	}
	if l := m.PoseLength(); l < 30-1e-9 || l > 30+1e-9 {
		t.Errorf("merged pose length %v; expected 30", l)
	}
	dir := m.Pose.Tail.Sub(m.Pose.Head).Normalize()
	if want := (mgl64.Vec3{-20, 10, 0}).Normalize(); !utils.VecsApproxEqual(dir, want, 1e-12) {
		t.Errorf("merged pose direction %v; expected %v", dir, want)
	}
	if !utils.VecsApproxEqual(d.Pose.Head, m.Pose.Tail, 1e-12) {
		t.Errorf("linked child pose head %v; expected merged pose tail %v", d.Pose.Head, m.Pose.Tail)
	}
	if !utils.VecsApproxEqual(d.Pose.Tail, m.Pose.Tail.Add(mgl64.Vec3{-10, 0, 0}), 1e-12) {
		t.Errorf("linked child pose tail %v; expected its direction kept", d.Pose.Tail)
	}
	if err := a.Validate(); err != nil {
		t.Error(err)
	}
}

func TestMergeBonesRejectsBranches(t *testing.T) {
	a, ids := branched(t)
	before := a.Records(false)
	for _, pair := range [][2]string{{"root", "hand"}, {"neck", "root"}, {"arm", "arm"}} {
		if _, err := a.MergeBones(ids[pair[0]], ids[pair[1]]); !IsStructural(err) {
			t.Errorf("MergeBones(%s, %s)=%v; expected structural error", pair[0], pair[1], err)
		}
	}
	if !reflect.DeepEqual(a.Records(false), before) {
		t.Errorf("armature changed after rejected merge")
	}
}

func TestSetLinked(t *testing.T) {
	a, ids := branched(t)
	if err := a.SetLinked(ids["root"], true); !IsStructural(err) {
		t.Errorf("SetLinked(root)=%v; expected structural error", err)
	}
	if err := a.SetLinked(ids["arm"], true); err != nil {
		t.Fatal(err)
	}
	arm, _ := a.Bone(ids["arm"])
	if arm.Rest.Head != (mgl64.Vec3{0, 20, 0}) {
		t.Errorf("linked arm head=%v; expected spine tail", arm.Rest.Head)
	}
	if err := a.Validate(); err != nil {
		t.Error(err)
	}
}

func TestChangeEvents(t *testing.T) {
	a, ids := branched(t)
	var kinds []ChangeKind
	a.OnChange(func(_ *Armature, ev ChangeEvent) {
		kinds = append(kinds, ev.Kind)
	})
	a.SetMode(ModePose)
	a.RotateTailInPose(ids["arm"], 1, mgl64.Vec3{0, 0, 1})
	a.SetRoll(ids["neck"], 0.2)
	a.RemoveBone(ids["hand"])
	expected := []ChangeKind{ChangeMode, ChangePose, ChangeRest, ChangeStructure}
	if !reflect.DeepEqual(kinds, expected) {
		t.Errorf("events %v; expected %v", kinds, expected)
	}
}
