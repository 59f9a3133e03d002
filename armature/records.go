package armature

import (
	"encoding/json"
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/armature_poser/utils"
)

// squared distance under which a head is considered sitting on the parent tail
const linkTolerance = 1e-6

// Records is the flat, topologically ordered form of an armature. Points
// holds one (head, tail) pair per bone, Parents the index of the parent
// bone (-1 for roots, always lower than the bone index). Names and
// RestToPose are optional and, when present, parallel to Points.
type Records struct {
	Name       string          `json:"name,omitempty" yaml:"name,omitempty"`
	Points     [][2][3]float64 `json:"points" yaml:"points"`
	Parents    []int           `json:"parents" yaml:"parents"`
	Names      []string        `json:"names,omitempty" yaml:"names,omitempty"`
	Rolls      []float64       `json:"rolls,omitempty" yaml:"rolls,omitempty"`
	RestToPose [][4]float64    `json:"rest_to_pose,omitempty" yaml:"rest_to_pose,omitempty"`
}

func (rs *Records) validate() error {
	n := len(rs.Points)
	if len(rs.Parents) != n {
		return structuralf("FromRecords", "%d parents for %d bones", len(rs.Parents), n)
	}
	if rs.Names != nil && len(rs.Names) != n {
		return structuralf("FromRecords", "%d names for %d bones", len(rs.Names), n)
	}
	if rs.Rolls != nil && len(rs.Rolls) != n {
		return structuralf("FromRecords", "%d rolls for %d bones", len(rs.Rolls), n)
	}
	if rs.RestToPose != nil && len(rs.RestToPose) != n {
		return structuralf("FromRecords", "%d pose rotations for %d bones", len(rs.RestToPose), n)
	}
	for i, p := range rs.Parents {
		if p >= i {
			return structuralf("FromRecords", "bone %d has parent %d; bones must follow their parent", i, p)
		}
		if p < -1 {
			return structuralf("FromRecords", "bone %d has unknown parent %d", i, p)
		}
	}
	return nil
}

// FromRecords builds a new armature. Nothing is returned on error. Bones
// whose head sits on the parent tail are linked. Unnamed bones get generated
// names from names, which may be nil.
func FromRecords(rs *Records, names *utils.NameGenerator) (*Armature, error) {
	if err := rs.validate(); err != nil {
		return nil, err
	}
	if names == nil {
		names = new(utils.NameGenerator)
	}
	names.Reserve(rs.Names...)

	a := New(rs.Name)
	ids := make([]BoneID, len(rs.Points))
	for i, pts := range rs.Points {
		name := ""
		if rs.Names != nil {
			name = rs.Names[i]
		}
		if name == "" {
			name = names.Name()
		}

		parent := NoBone
		if rs.Parents[i] >= 0 {
			parent = ids[rs.Parents[i]]
		}
		head, tail := mgl64.Vec3(pts[0]), mgl64.Vec3(pts[1])

		b, err := a.CreateBoneWithHead(parent, name, head, tail)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to create bone %d", i)
		}
		if rs.Rolls != nil && rs.Rolls[i] != 0 {
			if err := b.SetRoll(rs.Rolls[i]); err != nil {
				a.warn(err, nil)
			}
			b.ResetPoseToRest()
			b.SetWorldToParentPoseTransform(a.parentTransform(parent, ModePose))
		}

		linked := false
		if parent != NoBone {
			pb, _ := a.Bone(parent)
			linked = utils.VecsApproxEqual(pb.Rest.Tail, head, linkTolerance)
		}
		if ids[i], err = a.AddBone(b, parent, linked); err != nil {
			return nil, errors.Wrapf(err, "Failed to add bone %d", i)
		}
	}

	if rs.RestToPose != nil {
		rotations := make(map[BoneID]mgl64.Quat, len(ids))
		for i, q := range rs.RestToPose {
			rotations[ids[i]] = utils.QuatFromArray(q)
		}
		if err := a.ApplyPoseRotations(rotations); err != nil {
			return nil, errors.Wrapf(err, "Failed to apply pose")
		}
	}
	return a, nil
}

// Records flattens the armature in Order(). withPose adds the rest to pose
// rotations.
func (a *Armature) Records(withPose bool) *Records {
	order := a.Order()
	index := make(map[BoneID]int, len(order))
	rs := &Records{
		Name:    a.Name,
		Points:  make([][2][3]float64, len(order)),
		Parents: make([]int, len(order)),
		Names:   make([]string, len(order)),
	}
	if withPose {
		rs.RestToPose = make([][4]float64, len(order))
	}
	hasRoll := false
	rolls := make([]float64, len(order))
	for i, id := range order {
		index[id] = i
		r := a.bones[id]
		rs.Points[i] = [2][3]float64{r.bone.Rest.Head, r.bone.Rest.Tail}
		rs.Names[i] = r.bone.Name
		rs.Parents[i] = -1
		if r.parent != NoBone {
			rs.Parents[i] = index[r.parent]
		}
		rolls[i] = r.bone.Roll
		hasRoll = hasRoll || r.bone.Roll != 0
		if withPose {
			rs.RestToPose[i] = utils.QuatToArray(r.bone.RestToPose())
		}
	}
	if hasRoll {
		rs.Rolls = rolls
	}
	return rs
}

func ReadRecordsYAML(r io.Reader) (*Records, error) {
	var rs Records
	if err := yaml.NewDecoder(r).Decode(&rs); err != nil {
		return nil, errors.Wrapf(err, "Failed to unmarshal yaml")
	}
	return &rs, nil
}

func (rs *Records) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rs); err != nil {
		return errors.Wrapf(err, "Failed to marshal yaml")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrapf(err, "Failed to close yaml encoder")
	}
	return nil
}

func ReadRecordsJSON(r io.Reader) (*Records, error) {
	var rs Records
	if err := json.NewDecoder(r).Decode(&rs); err != nil {
		return nil, errors.Wrapf(err, "Failed to unmarshal json")
	}
	return &rs, nil
}
