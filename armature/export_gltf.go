package armature

import (
	"github.com/qmuntal/gltf"

	"github.com/mogaika/armature_poser/utils/gltfutils"
)

type GLTFArmatureExported struct {
	JointNodes map[BoneID]uint32
	Skin       uint32
}

// ExportGLTF appends one node per bone (in Order) and a skin listing them.
func (a *Armature) ExportGLTF(doc *gltf.Document, m Mode) *GLTFArmatureExported {
	order := a.Order()
	tfae := &GLTFArmatureExported{JointNodes: make(map[BoneID]uint32, len(order))}

	joints := make([]uint32, 0, len(order))
	for _, id := range order {
		r := a.bones[id]
		frame := a.localNodeFrame(id, m)

		node := &gltf.Node{
			Name:        r.bone.Name,
			Translation: gltfutils.Vec3(frame.Translation),
			Rotation:    gltfutils.Quat(frame.Rotation),
			Scale:       [3]float32{1, 1, 1},
		}

		nodeId := uint32(len(doc.Nodes))
		tfae.JointNodes[id] = nodeId
		doc.Nodes = append(doc.Nodes, node)
		joints = append(joints, nodeId)

		if r.parent != NoBone {
			parentNode := doc.Nodes[tfae.JointNodes[r.parent]]
			parentNode.Children = append(parentNode.Children, nodeId)
		} else {
			gltfutils.AddToScene(doc, nodeId)
		}
	}

	if len(joints) == 0 {
		return tfae
	}
	skin := &gltf.Skin{Name: a.Name, Joints: joints}
	root := tfae.JointNodes[a.roots[0]]
	skin.Skeleton = &root
	tfae.Skin = uint32(len(doc.Skins))
	doc.Skins = append(doc.Skins, skin)
	return tfae
}

func (a *Armature) ExportGLTFDefault(m Mode) *gltf.Document {
	doc := gltfutils.NewDocument()
	a.ExportGLTF(doc, m)
	return doc
}
