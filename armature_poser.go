package main

import (
	"bytes"
	"flag"
	"io/ioutil"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/mogaika/armature_poser/armature"
	"github.com/mogaika/armature_poser/bvh"
	"github.com/mogaika/armature_poser/config"
	"github.com/mogaika/armature_poser/utils"
	"github.com/mogaika/armature_poser/utils/gltfutils"
	"github.com/mogaika/armature_poser/web"
)

func load(bvhPath, recordsPath string) (*armature.Armature, *bvh.Importer, error) {
	if bvhPath != "" {
		im := bvh.NewImporter()
		a, err := im.LoadFile(bvhPath)
		return a, im, err
	}

	f, err := os.Open(recordsPath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Failed to open records")
	}
	defer f.Close()
	rs, err := armature.ReadRecordsYAML(f)
	if err != nil {
		return nil, nil, err
	}
	a, err := armature.FromRecords(rs, nil)
	return a, nil, err
}

func exportFiles(a *armature.Armature, gltfPath, fbxPath string) error {
	m, ok := armature.ParseMode(config.Get().Export.Mode)
	if !ok {
		m = armature.ModePose
	}
	if gltfPath != "" {
		var buf bytes.Buffer
		if err := gltfutils.ExportBinary(&buf, a.ExportGLTFDefault(m)); err != nil {
			return errors.Wrapf(err, "Failed to export glb")
		}
		if err := ioutil.WriteFile(gltfPath, buf.Bytes(), 0666); err != nil {
			return errors.Wrapf(err, "Failed to write %q", gltfPath)
		}
	}
	if fbxPath != "" {
		f, err := os.Create(fbxPath)
		if err != nil {
			return errors.Wrapf(err, "Failed to create %q", fbxPath)
		}
		defer f.Close()
		if err := a.ExportFbxDefault(m).Write(f); err != nil {
			return errors.Wrapf(err, "Failed to export fbx")
		}
	}
	return nil
}

func main() {
	var addr, configPath, bvhPath, recordsPath, gltfPath, fbxPath string
	var frame int
	var dump bool
	flag.StringVar(&configPath, "config", "", "Path to yaml config")
	flag.StringVar(&addr, "i", "", "Address of server, overrides config")
	flag.StringVar(&bvhPath, "bvh", "", "BVH file to load")
	flag.StringVar(&recordsPath, "records", "", "Armature records yaml to load")
	flag.IntVar(&frame, "frame", -1, "Apply this BVH frame before serving or exporting")
	flag.BoolVar(&dump, "dump", false, "Print the loaded bones and exit")
	flag.StringVar(&gltfPath, "gltf", "", "Export armature to this .glb and exit")
	flag.StringVar(&fbxPath, "fbx", "", "Export armature to this .fbx and exit")
	flag.Parse()

	if err := config.Load(configPath); err != nil {
		log.Fatal(err)
	}
	if bvhPath == "" && recordsPath == "" {
		flag.PrintDefaults()
		return
	}

	a, im, err := load(bvhPath, recordsPath)
	if err != nil {
		log.Fatal(err)
	}
	if frame >= 0 {
		if im == nil {
			log.Fatal("-frame needs -bvh")
		}
		if err := im.ApplyFrame(a, frame); err != nil {
			log.Fatal(err)
		}
	}

	if dump || gltfPath != "" || fbxPath != "" {
		if dump {
			for _, id := range a.Order() {
				b, _ := a.Bone(id)
				utils.Dump(os.Stdout, b)
			}
		}
		if err := exportFiles(a, gltfPath, fbxPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	if addr == "" {
		addr = config.Get().Listen
	}
	if err := web.StartServer(addr, a, im, "web"); err != nil {
		log.Fatal(err)
	}
}
