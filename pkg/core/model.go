package core

import (
	"fmt"

	"github.com/zvirb/gpu-balancer/pkg/config"
)

// Static descriptor of a servable model; owned by an external registry,
// the core only reads it.
type ModelInfo struct {
	Name     string
	MemoryGB float64
	Category string
}

func (m *ModelInfo) String() string {
	return fmt.Sprintf("ModelInfo: name=%s; memoryGB=%v; category=%s", m.Name, m.MemoryGB, m.Category)
}

// ModelRegistry resolves model identifiers to their descriptors.
// Get returns nil for unknown models.
type ModelRegistry interface {
	Get(name string) *ModelInfo
}

// StaticModelRegistry holds a fixed model table loaded from configuration.
type StaticModelRegistry struct {
	models map[string]*ModelInfo
}

var _ ModelRegistry = (*StaticModelRegistry)(nil)

func NewStaticModelRegistry() *StaticModelRegistry {
	return &StaticModelRegistry{models: map[string]*ModelInfo{}}
}

func NewStaticModelRegistryFromSpec(data *config.ModelData) *StaticModelRegistry {
	r := NewStaticModelRegistry()
	if data == nil {
		return r
	}
	for i := range data.Models {
		spec := &data.Models[i]
		r.Add(&ModelInfo{Name: spec.Name, MemoryGB: spec.MemoryGB, Category: spec.Category})
	}
	return r
}

func (r *StaticModelRegistry) Add(m *ModelInfo) {
	r.models[m.Name] = m
}

func (r *StaticModelRegistry) Get(name string) *ModelInfo {
	return r.models[name]
}

func (r *StaticModelRegistry) Len() int {
	return len(r.models)
}
