package config

import (
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/armature_poser/utils"
)

type BVH struct {
	// Euler angles in degrees, applied around X, then Y, then Z
	InitialRotation  [3]float64 `yaml:"initial_rotation"`
	LinkToFirstChild bool       `yaml:"link_to_first_child" env:"POSER_BVH_LINK_TO_FIRST_CHILD"`
	Encoding         string     `yaml:"encoding" env:"POSER_BVH_ENCODING"`
}

type Export struct {
	Name string `yaml:"name" env:"POSER_EXPORT_NAME"`
	// "rest" or "pose"
	Mode string `yaml:"mode" env:"POSER_EXPORT_MODE"`
}

type Config struct {
	Listen string `yaml:"listen" env:"POSER_LISTEN"`
	BVH    BVH    `yaml:"bvh"`
	Export Export `yaml:"export"`
}

func Default() Config {
	return Config{
		Listen: ":8000",
		BVH: BVH{
			// y-up capture to z-up scene
			InitialRotation: [3]float64{90, 0, 180},
		},
		Export: Export{Name: "armature", Mode: "pose"},
	}
}

var current = Default()

func Get() Config {
	return current
}

func Set(c Config) error {
	if err := SetEncoding(c.BVH.Encoding); err != nil {
		return err
	}
	current = c
	return nil
}

// Load reads a YAML file over the defaults, then applies environment
// overrides. An empty path only applies the environment.
func Load(path string) error {
	c := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "Failed to open config %q", path)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&c); err != nil && err != io.EOF {
			return errors.Wrapf(err, "Failed to unmarshal config %q", path)
		}
	}
	if err := ApplyEnv(&c); err != nil {
		return err
	}
	return Set(c)
}

func ApplyEnv(c *Config) error {
	if err := env.Parse(c); err != nil {
		return errors.Wrapf(err, "Failed to parse environment")
	}
	return nil
}

func GetInitialRotation() mgl64.Quat {
	return utils.EulerDegreesToQuat(current.BVH.InitialRotation)
}

func SetInitialRotation(degrees [3]float64) {
	current.BVH.InitialRotation = degrees
}
