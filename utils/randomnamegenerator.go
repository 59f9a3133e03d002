package utils

import (
	"math/rand"

	"github.com/Pallinder/go-randomdata"
)

// NameGenerator hands out unique names, the same sequence for the same seed.
type NameGenerator struct {
	Seed int64
	used map[string]struct{}
}

// Reserve marks names as taken so they are never generated.
func (g *NameGenerator) Reserve(names ...string) {
	if g.used == nil {
		g.used = make(map[string]struct{})
	}
	for _, name := range names {
		if name != "" {
			g.used[name] = struct{}{}
		}
	}
}

func (g *NameGenerator) Name() string {
	if g.used == nil {
		g.used = make(map[string]struct{})
	}
	if !g.seeded() {
		randomdata.CustomRand(rand.New(rand.NewSource(g.Seed)))
		g.used[""] = struct{}{}
	}
	for {
		name := randomdata.SillyName()
		// avoid duplicate names
		if _, exists := g.used[name]; !exists {
			g.used[name] = struct{}{}
			return name
		}
	}
}

func (g *NameGenerator) seeded() bool {
	_, ok := g.used[""]
	return ok
}
