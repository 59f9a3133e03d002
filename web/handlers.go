package web

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/armature_poser/armature"
	"github.com/mogaika/armature_poser/bvh"
	"github.com/mogaika/armature_poser/config"
	"github.com/mogaika/armature_poser/status"
	"github.com/mogaika/armature_poser/utils"
	"github.com/mogaika/armature_poser/utils/gltfutils"
	"github.com/mogaika/armature_poser/webutils"
)

type stateView struct {
	Head        mgl64.Vec3
	Tail        mgl64.Vec3
	WorldToBone [4]float64
}

type boneView struct {
	Id       armature.BoneID
	Name     string
	Parent   armature.BoneID
	Children []armature.BoneID
	Linked   bool
	Roll     float64
	Length   float64
	Rest     stateView
	Pose     stateView
}

type armatureView struct {
	Name       string
	Mode       string
	Generation uint64
	Roots      []armature.BoneID
	Bones      []boneView
	FrameCount int     `json:",omitempty"`
	FrameRate  float64 `json:",omitempty"`
	// bone of every bvh joint, in file order
	Joints []armature.BoneID `json:",omitempty"`
}

type encodingsView struct {
	Current   string
	Available []string
}

func viewBone(a *armature.Armature, id armature.BoneID) boneView {
	b, _ := a.Bone(id)
	view := func(s armature.BoneState) stateView {
		return stateView{Head: s.Head, Tail: s.Tail, WorldToBone: utils.QuatToArray(s.WorldToBone)}
	}
	return boneView{
		Id:       id,
		Name:     b.Name,
		Parent:   a.Parent(id),
		Children: a.Children(id),
		Linked:   a.IsLinked(id),
		Roll:     b.Roll,
		Length:   b.Length(),
		Rest:     view(b.Rest),
		Pose:     view(b.Pose),
	}
}

// writeError reports armature and bvh input problems as 400.
func writeError(w http.ResponseWriter, err error) {
	var perr *bvh.ParseError
	if armature.IsStructural(err) || errors.As(err, &perr) {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
	} else {
		webutils.WriteError(w, err)
	}
}

func boneIdParam(r *http.Request) (armature.BoneID, error) {
	param := mux.Vars(r)["id"]
	id, err := strconv.Atoi(param)
	if err != nil {
		return armature.NoBone, &armature.StructuralError{Op: "web", Reason: fmt.Sprintf("bone id %q is not integer", param)}
	}
	if !ServerArmature.Has(armature.BoneID(id)) {
		return armature.NoBone, &armature.StructuralError{Op: "web", Reason: fmt.Sprintf("unknown bone %d", id)}
	}
	return armature.BoneID(id), nil
}

func HandlerAjaxArmature(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	a := ServerArmature
	v := armatureView{
		Name:       a.Name,
		Mode:       a.Mode().String(),
		Generation: a.Generation(),
		Roots:      a.Roots(),
	}
	for _, id := range a.Order() {
		v.Bones = append(v.Bones, viewBone(a, id))
	}
	if ServerImporter != nil {
		v.FrameCount = ServerImporter.FrameCount()
		v.FrameRate = ServerImporter.FrameRate()
		v.Joints = ServerImporter.Bones()
	}
	webutils.WriteJson(w, v)
}

func HandlerAjaxEncodings(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, encodingsView{
		Current:   config.EncodingName(),
		Available: config.ListEncodings(),
	})
}

// HandlerActionEncoding selects the charmap used for bvh files read afterwards.
func HandlerActionEncoding(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	if err := config.SetEncoding(mux.Vars(r)["name"]); err != nil {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
		return
	}
	webutils.WriteJson(w, encodingsView{Current: config.EncodingName()})
}

func HandlerAjaxBone(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	id, err := boneIdParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	webutils.WriteJson(w, viewBone(ServerArmature, id))
}

func HandlerActionMode(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	param := mux.Vars(r)["mode"]
	m, ok := armature.ParseMode(param)
	if !ok {
		writeError(w, &armature.StructuralError{Op: "SetMode", Reason: fmt.Sprintf("unknown mode %q", param)})
		return
	}
	if err := ServerArmature.SetMode(m); err != nil {
		writeError(w, err)
		return
	}
	webutils.WriteJson(w, map[string]string{"mode": m.String()})
}

func HandlerActionFrame(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	if ServerImporter == nil {
		writeError(w, &armature.StructuralError{Op: "ApplyFrame", Reason: "armature has no motion"})
		return
	}
	param := mux.Vars(r)["frame"]
	frame, err := strconv.Atoi(param)
	if err != nil {
		writeError(w, &armature.StructuralError{Op: "ApplyFrame", Reason: fmt.Sprintf("frame %q is not integer", param)})
		return
	}
	used, clampErr := ServerImporter.ClampFrame(frame)
	if err := ServerImporter.ApplyFrame(ServerArmature, used); err != nil {
		writeError(w, err)
		return
	}
	res := map[string]interface{}{"frame": used}
	if clampErr != nil {
		res["warning"] = clampErr.Error()
	}
	webutils.WriteJson(w, res)
}

// HandlerActionLinkFirst re-tails joints with several children of the served
// bvh armature, see bvh.Importer.SetLinkToFirstChild.
func HandlerActionLinkFirst(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	if ServerImporter == nil {
		writeError(w, &armature.StructuralError{Op: "SetLinkToFirstChild", Reason: "armature is not loaded from bvh"})
		return
	}
	param := mux.Vars(r)["value"]
	link, err := strconv.ParseBool(param)
	if err != nil {
		writeError(w, &armature.StructuralError{Op: "SetLinkToFirstChild", Reason: fmt.Sprintf("invalid value %q", param)})
		return
	}
	if err := ServerImporter.SetLinkToFirstChild(link); err != nil {
		writeError(w, err)
		return
	}
	webutils.WriteJson(w, map[string]bool{"link_to_first_child": link})
}

// HandlerActionRotate turns a bone in pose. Query: angle in degrees, axis as
// "x,y,z", space "world" (default) or "parent".
func HandlerActionRotate(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	id, err := boneIdParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	angle, err := strconv.ParseFloat(q.Get("angle"), 64)
	if err != nil {
		writeError(w, &armature.StructuralError{Op: "RotateTailInPose", Reason: fmt.Sprintf("invalid angle %q", q.Get("angle"))})
		return
	}
	var axis mgl64.Vec3
	parts := strings.Split(q.Get("axis"), ",")
	if len(parts) != 3 {
		writeError(w, &armature.StructuralError{Op: "RotateTailInPose", Reason: fmt.Sprintf("invalid axis %q", q.Get("axis"))})
		return
	}
	for i, part := range parts {
		if axis[i], err = strconv.ParseFloat(strings.TrimSpace(part), 64); err != nil {
			writeError(w, &armature.StructuralError{Op: "RotateTailInPose", Reason: fmt.Sprintf("invalid axis %q", q.Get("axis"))})
			return
		}
	}

	if q.Get("space") == "parent" {
		err = ServerArmature.RotateTailInParentFrame(id, mgl64.DegToRad(angle), axis)
	} else {
		err = ServerArmature.RotateTailInPose(id, mgl64.DegToRad(angle), axis)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	webutils.WriteJson(w, viewBone(ServerArmature, id))
}

func HandlerActionReset(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	if err := ServerArmature.ResetPoseToRest(); err != nil {
		writeError(w, err)
		return
	}
	webutils.WriteJson(w, map[string]string{"mode": ServerArmature.Mode().String()})
}

func exportMode(r *http.Request) armature.Mode {
	if m, ok := armature.ParseMode(r.URL.Query().Get("mode")); ok {
		return m
	}
	return ServerArmature.Mode()
}

func HandlerDumpGLTF(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	doc := ServerArmature.ExportGLTFDefault(exportMode(r))
	var buf bytes.Buffer
	if err := gltfutils.ExportBinary(&buf, doc); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to export glb"))
		return
	}
	webutils.WriteFile(w, &buf, ServerArmature.Name+".glb")
}

func HandlerDumpFbx(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	a := ServerArmature
	f := a.ExportFbxDefault(exportMode(r))
	var records bytes.Buffer
	if err := a.Records(true).WriteYAML(&records); err != nil {
		webutils.WriteError(w, err)
		return
	}
	f.AddExportFile(a.Name+".yaml", records.Bytes())

	var buf bytes.Buffer
	if err := f.WriteZip(&buf, a.Name+".fbx"); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to export fbx"))
		return
	}
	webutils.WriteFile(w, &buf, a.Name+".zip")
}

// HandlerDumpRecords writes YAML, or JSON with ?format=json.
func HandlerDumpRecords(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	rs := ServerArmature.Records(true)
	if r.URL.Query().Get("format") == "json" {
		webutils.WriteJsonFile(w, rs, ServerArmature.Name)
		return
	}
	var buf bytes.Buffer
	if err := rs.WriteYAML(&buf); err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteFile(w, &buf, ServerArmature.Name+".yaml")
}

func HandlerDumpArmature(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	a := ServerArmature
	bones := make([]armature.Bone, 0, a.Len())
	for _, id := range a.Order() {
		b, _ := a.Bone(id)
		bones = append(bones, b)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	webutils.WriteResult(w, []byte(utils.SDump(a.Name, a.Mode(), bones)))
}

// HandlerUploadRecords replaces the served armature with uploaded records,
// YAML when the file name says so, JSON otherwise.
func HandlerUploadRecords(w http.ResponseWriter, r *http.Request) {
	f, header, err := webutils.OpenFormFile(r, "data")
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Close()

	var rs *armature.Records
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".yaml", ".yml":
		rs, err = armature.ReadRecordsYAML(f)
	default:
		rs, err = armature.ReadRecordsJSON(f)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if rs.Name == "" {
		rs.Name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	a, err := armature.FromRecords(rs, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	SetArmature(a, nil)
	status.Info("Loaded armature %q with %d bones", a.Name, a.Len())
	webutils.WriteJson(w, map[string]interface{}{"name": a.Name, "bones": a.Len()})
}
