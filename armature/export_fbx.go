package armature

import (
	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"

	"github.com/mogaika/armature_poser/utils"
	"github.com/mogaika/armature_poser/utils/fbxbuilder"
)

type FbxExporter struct {
	FbxModelId int64
	Bones      map[BoneID]*fbx.Node
}

// ExportFbx adds a Null model for the armature with one LimbNode model per
// bone below it. An armature is exported once per builder.
func (a *Armature) ExportFbx(f *fbxbuilder.FBXBuilder, m Mode) *FbxExporter {
	return f.GetCachedOr(a, func() interface{} {
		return a.exportFbx(f, m)
	}).(*FbxExporter)
}

func (a *Armature) exportFbx(f *fbxbuilder.FBXBuilder, m Mode) *FbxExporter {
	fe := &FbxExporter{
		FbxModelId: f.GenerateId(),
		Bones:      make(map[BoneID]*fbx.Node, len(a.bones)),
	}

	model := bfbx73.Model(fe.FbxModelId, a.Name+"\x00\x01Model", "Null").AddNodes(
		bfbx73.Version(232),
		bfbx73.Properties70(),
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	)
	nodeAttribute := bfbx73.NodeAttribute(f.GenerateId(), a.Name+"\x00\x01NodeAttribute", "Null").AddNodes(
		bfbx73.TypeFlags("Null"),
	)
	f.AddObjects(model, nodeAttribute)
	f.AddConnections(bfbx73.C("OO", nodeAttribute.Properties[0].(int64), fe.FbxModelId))

	for _, id := range a.Order() {
		r := a.bones[id]
		frame := a.localNodeFrame(id, m)
		rotation := utils.RadiansToDegreeV3(utils.QuatToEuler(frame.Rotation))
		pos := frame.Translation

		boneModelId := f.GenerateId()
		boneModel := bfbx73.Model(boneModelId, r.bone.Name+"\x00\x01Model", "LimbNode").AddNodes(
			bfbx73.Version(232),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("Lcl Translation", "Lcl Translation", "", "A+", pos[0], pos[1], pos[2]),
				bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A+", rotation[0], rotation[1], rotation[2]),
				bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A+", float64(1), float64(1), float64(1)),
			),
			bfbx73.Shading(true),
			bfbx73.Culling("CullingOff"),
		)
		boneAttribute := bfbx73.NodeAttribute(f.GenerateId(), r.bone.Name+"\x00\x01NodeAttribute", "LimbNode").AddNodes(
			bfbx73.Properties70().AddNodes(
				bfbx73.P("Size", "double", "Number", "", r.bone.Length()),
			),
			bfbx73.TypeFlags("Skeleton"),
		)
		fe.Bones[id] = boneModel
		f.AddObjects(boneModel, boneAttribute)

		parentModelId := fe.FbxModelId
		if r.parent != NoBone {
			parentModelId = fe.Bones[r.parent].Properties[0].(int64)
		}
		f.AddConnections(
			bfbx73.C("OO", boneAttribute.Properties[0].(int64), boneModelId),
			bfbx73.C("OO", boneModelId, parentModelId),
		)
	}

	return fe
}

func (a *Armature) ExportFbxDefault(m Mode) *fbxbuilder.FBXBuilder {
	f := fbxbuilder.NewFBXBuilder(a.Name + ".fbx")
	fe := a.ExportFbx(f, m)
	f.AddConnections(bfbx73.C("OO", fe.FbxModelId, 0))
	return f
}
