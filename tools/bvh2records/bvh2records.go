package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/mogaika/armature_poser/bvh"
	"github.com/mogaika/armature_poser/config"
)

func main() {
	var in, out string
	var frame int
	flag.StringVar(&in, "bvh", "", "Path to bvh file")
	flag.StringVar(&out, "out", "", "Path to records yaml, stdout if empty")
	flag.IntVar(&frame, "frame", -1, "Store rotations of this frame as pose")
	flag.Parse()

	if err := config.Load(""); err != nil {
		log.Fatal(err)
	}

	im := bvh.NewImporter()
	a, err := im.LoadFile(in)
	if err != nil {
		log.Fatal(err)
	}
	if frame >= 0 {
		if err := im.ApplyFrame(a, frame); err != nil {
			log.Fatal(err)
		}
	}

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w = f
	}
	if err := a.Records(frame >= 0).WriteYAML(w); err != nil {
		log.Fatal(err)
	}
}
