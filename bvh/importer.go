package bvh

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/armature_poser/armature"
	"github.com/mogaika/armature_poser/config"
	"github.com/mogaika/armature_poser/utils"
)

// Frame holds one rotation per joint, in skeleton order, already expressed
// in the rest frame of the joint's parent bone.
type Frame struct {
	Index      int
	Rotations  []mgl64.Quat
	FrameRate  float64
	FrameCount int
}

type Importer struct {
	// applied to every offset and every rotation of the file
	InitialRotation mgl64.Quat
	// joints with several children point to the first child instead of the
	// centroid of all of them
	LinkToFirstChild bool

	file     *File
	armature *armature.Armature
	bones    []armature.BoneID
}

func NewImporter() *Importer {
	return &Importer{
		InitialRotation:  config.GetInitialRotation(),
		LinkToFirstChild: config.Get().BVH.LinkToFirstChild,
	}
}

func (im *Importer) LoadFile(path string) (*armature.Armature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Msg: "unreadable file: " + err.Error()}
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return im.Load(f, name)
}

// Load parses r and builds a new armature from its hierarchy. On failure the
// importer keeps its previous state.
func (im *Importer) Load(r io.Reader, name string) (*armature.Armature, error) {
	file, err := Parse(r)
	if err != nil {
		return nil, err
	}
	a, bones, err := im.build(file, name)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to build armature %q", name)
	}
	im.file = file
	im.armature = a
	im.bones = bones
	log.Printf("[bvh] Loaded %q: %d bones, %d frames", name, len(bones), file.Motion.FrameCount)
	return a, nil
}

func (im *Importer) initial() mgl64.Quat {
	if im.InitialRotation.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return im.InitialRotation.Normalize()
}

func (im *Importer) build(file *File, name string) (*armature.Armature, []armature.BoneID, error) {
	initial := im.initial()
	joints := file.Skeleton.Joints
	heads := file.Skeleton.WorldHeads(initial)
	tails := make([]mgl64.Vec3, len(joints))
	linked := make([]bool, len(joints))

	for i, j := range joints {
		switch {
		case len(j.Children) == 1:
			tails[i] = heads[j.Children[0]]
			linked[j.Children[0]] = true
		case len(j.Children) > 1 && im.LinkToFirstChild:
			tails[i] = heads[j.Children[0]]
			linked[j.Children[0]] = true
		case len(j.Children) > 1:
			var sum mgl64.Vec3
			for _, c := range j.Children {
				sum = sum.Add(heads[c])
			}
			tails[i] = sum.Mul(1 / float64(len(j.Children)))
		case j.EndSite != nil:
			tails[i] = heads[i].Add(initial.Rotate(*j.EndSite))
		default:
			// leaf without End Site keeps going in the direction of its offset
			dir := j.Offset
			if dir.Len() == 0 {
				dir = utils.AxisY
			}
			tails[i] = heads[i].Add(initial.Rotate(dir))
		}
	}

	a := armature.New(name)
	bones := make([]armature.BoneID, len(joints))
	for i, j := range joints {
		parent := armature.NoBone
		if j.Parent >= 0 {
			parent = bones[j.Parent]
		}
		b, err := a.CreateBoneWithHead(parent, j.Name, heads[i], tails[i])
		if err != nil {
			return nil, nil, err
		}
		if bones[i], err = a.AddBone(b, parent, linked[i] && parent != armature.NoBone); err != nil {
			return nil, nil, err
		}
	}
	return a, bones, nil
}

// SetLinkToFirstChild switches how joints with several children are tailed
// and re-tails the loaded armature to match: either to the head of the first
// child, which becomes linked, or back to the centroid of all child heads.
func (im *Importer) SetLinkToFirstChild(link bool) error {
	if im.LinkToFirstChild == link {
		return nil
	}
	im.LinkToFirstChild = link
	if im.armature == nil {
		return nil
	}

	a := im.armature
	for i, j := range im.file.Skeleton.Joints {
		if len(j.Children) < 2 {
			continue
		}
		bone, first := im.bones[i], im.bones[j.Children[0]]
		if link {
			fb, ok := a.Bone(first)
			if !ok {
				return &armature.StructuralError{Op: "SetLinkToFirstChild", Reason: "armature has no bone for joint " + j.Name}
			}
			if err := a.SetRestTail(bone, fb.Rest.Head); err != nil {
				return errors.Wrapf(err, "Failed to tail %q", j.Name)
			}
			if err := a.SetLinked(first, true); err != nil {
				return errors.Wrapf(err, "Failed to link first child of %q", j.Name)
			}
			continue
		}

		if err := a.SetLinked(first, false); err != nil {
			return errors.Wrapf(err, "Failed to unlink first child of %q", j.Name)
		}
		var sum mgl64.Vec3
		for _, c := range j.Children {
			cb, ok := a.Bone(im.bones[c])
			if !ok {
				return &armature.StructuralError{Op: "SetLinkToFirstChild", Reason: "armature has no bone for joint " + j.Name}
			}
			sum = sum.Add(cb.Rest.Head)
		}
		if err := a.SetRestTail(bone, sum.Mul(1/float64(len(j.Children)))); err != nil {
			return errors.Wrapf(err, "Failed to tail %q", j.Name)
		}
	}
	log.Printf("[bvh] %q: LinkToFirstChild=%v", a.Name, link)
	return nil
}

func (im *Importer) Armature() *armature.Armature { return im.armature }

func (im *Importer) Skeleton() *Skeleton {
	if im.file == nil {
		return nil
	}
	return &im.file.Skeleton
}

// Bones maps joint indices to armature bones.
func (im *Importer) Bones() []armature.BoneID {
	return append([]armature.BoneID(nil), im.bones...)
}

func (im *Importer) FrameCount() int {
	if im.file == nil {
		return 0
	}
	return im.file.Motion.FrameCount
}

// FrameRate is the value of "Frame Time:", seconds per frame.
func (im *Importer) FrameRate() float64 {
	if im.file == nil {
		return 0
	}
	return im.file.Motion.FrameTime
}

// ClampFrame maps index into [0, FrameCount). A clamped index is logged and
// reported with *FrameIndexOutOfRange; the returned index is usable anyway.
func (im *Importer) ClampFrame(index int) (int, error) {
	count := im.FrameCount()
	used := index
	if used >= count {
		used = count - 1
	}
	if used < 0 {
		used = 0
	}
	if used == index && count > 0 {
		return index, nil
	}
	err := &FrameIndexOutOfRange{Requested: index, Used: used, FrameCount: count}
	log.Printf("[bvh] warning: %v", err)
	return used, err
}

// frame computes the rotations of a frame against the rest pose of a.
func (im *Importer) frame(a *armature.Armature, index int) (*Frame, error) {
	if im.file == nil {
		return nil, errors.Errorf("Nothing loaded")
	}
	if im.file.Motion.FrameCount == 0 {
		log.Printf("[bvh] warning: no motion frames, using rest pose")
		return &Frame{FrameRate: im.FrameRate()}, nil
	}
	index, _ = im.ClampFrame(index)

	initial := im.initial()
	invInitial := initial.Inverse()
	row := im.file.Motion.Values[index]
	fr := &Frame{
		Index:      index,
		Rotations:  make([]mgl64.Quat, len(im.file.Skeleton.Joints)),
		FrameRate:  im.FrameRate(),
		FrameCount: im.FrameCount(),
	}
	for i, j := range im.file.Skeleton.Joints {
		rotation := mgl64.QuatIdent()
		for c, ch := range j.Channels {
			if !ch.IsRotation() {
				continue
			}
			angle := mgl64.DegToRad(row[j.FirstChannel+c])
			rotation = rotation.Mul(utils.AxisAngleQuat(ch.Axis(), angle))
		}
		rotation = initial.Mul(rotation).Mul(invInitial)

		b, ok := a.Bone(im.bones[i])
		if !ok {
			return nil, &armature.StructuralError{Op: "ApplyFrame", Reason: "armature has no bone for joint " + j.Name}
		}
		toParent := b.Rest.WorldToParent.Rotation
		fr.Rotations[i] = toParent.Inverse().Mul(rotation).Mul(toParent).Normalize()
	}
	return fr, nil
}

func (im *Importer) Frame(index int) (*Frame, error) {
	if im.armature == nil {
		return nil, errors.Errorf("Nothing loaded")
	}
	return im.frame(im.armature, index)
}

// ApplyFrame poses a from rest with the given frame and switches it to pose
// mode. Applying the same frame twice gives the same pose.
func (im *Importer) ApplyFrame(a *armature.Armature, index int) error {
	fr, err := im.frame(a, index)
	if err != nil {
		return err
	}
	rotations := make(map[armature.BoneID]mgl64.Quat, len(fr.Rotations))
	for i, q := range fr.Rotations {
		rotations[im.bones[i]] = q
	}
	if err := a.ApplyPoseRotations(rotations); err != nil {
		return errors.Wrapf(err, "Failed to apply frame %d", fr.Index)
	}
	return a.SetMode(armature.ModePose)
}
