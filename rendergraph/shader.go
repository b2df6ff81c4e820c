// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// maxDescSets is the maximum number of descriptor sets (heaps
// composed into one DescTable) a Shader may declare (§4.6: "for
// each set index in [0, min(4, root_sig.table_count))").
const maxDescSets = 4

// NamedDescriptor is a driver.Descriptor annotated with the
// binding name PushConstants resolves against. Shader
// compilation/reflection is a non-goal, so this layout is
// supplied by the caller instead of derived from the shader
// binary (§4 Non-goals).
type NamedDescriptor struct {
	driver.Descriptor
	Name string
}

// Shader bundles a pipeline's programmable stages with the
// descriptor layout (root signature, §Glossary) the encoder
// needs to build and populate its DescTable. A Shader is either
// graphics (Vert set, Comp unset) or compute (Comp set, Vert/
// Frag unset).
type Shader struct {
	Vert driver.ShaderFunc
	Frag driver.ShaderFunc
	Comp driver.ShaderFunc

	Sets [maxDescSets][]NamedDescriptor

	vertCodeID, fragCodeID, compCodeID uint64
	registered                         bool
}

// IsCompute reports whether the shader targets the compute
// pipeline stage.
func (s *Shader) IsCompute() bool { return s.Comp.Code != nil }

// setCount returns one past the index of the last non-empty
// descriptor set (0 if every set is empty).
func (s *Shader) setCount() int {
	n := 0
	for i, set := range s.Sets {
		if len(set) > 0 {
			n = i + 1
		}
	}
	return n
}

// register assigns stable ids to the shader's code objects, the
// first time it is used against fc. Safe to call repeatedly.
func (s *Shader) register(fc *FrameContext) {
	if s.registered {
		return
	}
	if s.IsCompute() {
		s.compCodeID = fc.RegisterShader(s.Comp.Code)
	} else {
		s.vertCodeID = fc.RegisterShader(s.Vert.Code)
		s.fragCodeID = fc.RegisterShader(s.Frag.Code)
	}
	s.registered = true
}

// findSlot locates the named descriptor within the shader's
// sets, returning its set index and Nr.
func (s *Shader) findSlot(name string) (set, nr int, typ driver.DescType, ok bool) {
	for si, entries := range s.Sets {
		for _, d := range entries {
			if d.Name == name {
				return si, d.Nr, d.Type, true
			}
		}
	}
	return 0, 0, 0, false
}
