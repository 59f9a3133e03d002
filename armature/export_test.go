package armature

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/armature_poser/utils"
	"github.com/mogaika/armature_poser/utils/gltfutils"
)

func TestLocalNodeFrameRebuildsWorld(t *testing.T) {
	a, ids := branched(t)
	a.SetMode(ModePose)
	a.RotateTailInPose(ids["spine"], 0.7, mgl64.Vec3{1, 0, 1})

	for _, m := range []Mode{ModeRest, ModePose} {
		world := make(map[BoneID]nodeFrame)
		for _, id := range a.Order() {
			local := a.localNodeFrame(id, m)
			if p := a.Parent(id); p != NoBone {
				pw := world[p]
				local = nodeFrame{
					Translation: pw.Translation.Add(pw.Rotation.Rotate(local.Translation)),
					Rotation:    pw.Rotation.Mul(local.Rotation),
				}
			}
			world[id] = local
			b, _ := a.Bone(id)
			s := b.State(m)
			if !utils.VecsApproxEqual(local.Translation, s.Head, 1e-12) ||
				!utils.QuatsApproxEqual(local.Rotation, s.WorldToBone, 1e-9) {
				t.Errorf("%s %v: node frame %v does not rebuild head %v", b.Name, m, local, s.Head)
			}
		}
	}
}

func TestExportGLTF(t *testing.T) {
	a, ids := branched(t)
	doc := gltfutils.NewDocument()
	exp := a.ExportGLTF(doc, ModeRest)

	if len(doc.Nodes) != a.Len() || len(exp.JointNodes) != a.Len() {
		t.Fatalf("%d nodes for %d bones", len(doc.Nodes), a.Len())
	}
	if len(doc.Skins) != 1 || len(doc.Skins[exp.Skin].Joints) != a.Len() {
		t.Errorf("skin not exported")
	}
	spine := doc.Nodes[exp.JointNodes[ids["spine"]]]
	if len(spine.Children) != 2 {
		t.Errorf("spine node has %d children; expected 2", len(spine.Children))
	}
	if got := doc.Scenes[0].Nodes; len(got) != 1 || got[0] != exp.JointNodes[ids["root"]] {
		t.Errorf("scene nodes %v; expected only root", got)
	}

	var buf bytes.Buffer
	if err := gltfutils.ExportBinary(&buf, doc); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("glTF")) {
		t.Errorf("binary export has no glTF magic")
	}
}

func TestExportFbx(t *testing.T) {
	a, _ := branched(t)
	f := a.ExportFbxDefault(ModePose)
	fe, ok := f.GetCached(a).(*FbxExporter)
	if !ok {
		t.Fatalf("exporter not cached")
	}
	if len(fe.Bones) != a.Len() {
		t.Errorf("%d limb nodes for %d bones", len(fe.Bones), a.Len())
	}
	if again := a.ExportFbx(f, ModePose); again != fe {
		t.Errorf("second export into the same builder created new models")
	}
}
