// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"testing"

	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/internal/ctxt"
)

// TestGlobalStackShadowing covers property 6: resolving a
// set_global_* stack at draw time returns the last-pushed
// binder for a given (set, slot); earlier binders are shadowed.
func TestGlobalStackShadowing(t *testing.T) {
	gpu := newFakeGPU()
	ctxt.Use(gpu)
	fc, err := NewFrameContext(gpu)
	if err != nil {
		t.Fatalf("NewFrameContext: %v", err)
	}
	defer fc.Destroy()

	enc := newRenderPassEncoder(fc, New(), &fakeCmdBuffer{}, 1, 0, 1, 1)
	s1, s2 := &fakeSampler{}, &fakeSampler{}
	enc.SetGlobalSampler(0, 3, s1)
	enc.SetGlobalSampler(0, 3, s2)

	d := NamedDescriptor{Descriptor: driver.Descriptor{Type: driver.DSampler, Nr: 3}, Name: "splr"}
	got := enc.resolveSlot(0, d)
	if got.splr != s2 {
		t.Errorf("resolveSlot: want the last-pushed sampler to win, got the earlier one shadowed through")
	}
}

// TestPipelineCacheSingleBind covers property 7: two successive
// Draw calls with identical (shader, topology, vertex layout,
// render pass, subpass, RT count) result in exactly one
// SetPipeline call.
func TestPipelineCacheSingleBind(t *testing.T) {
	gpu := newFakeGPU()
	ctxt.Use(gpu)
	fc, err := NewFrameContext(gpu)
	if err != nil {
		t.Fatalf("NewFrameContext: %v", err)
	}
	defer fc.Destroy()

	rpDesc := RenderPassDesc{ColorCount: 1, Color: [maxColorAttachments]driver.Attachment{{Format: driver.RGBA8un, Samples: 1, Store: [2]driver.StoreOp{driver.SStore}}}}
	rp, err := fc.rpPool.Get(rpDesc)
	if err != nil {
		t.Fatalf("rpPool.Get: %v", err)
	}
	fc.rpByID[rp.id] = rp

	cmd := &fakeCmdBuffer{}
	enc := newRenderPassEncoder(fc, New(), cmd, rp.id, 0, 1, 1)
	shader := &Shader{
		Vert: driver.ShaderFunc{Code: &fakeShaderCode{}, Name: "vs"},
		Frag: driver.ShaderFunc{Code: &fakeShaderCode{}, Name: "fs"},
	}
	mesh := &Mesh{VertexCount: 3}

	enc.Draw(shader, mesh)
	enc.Draw(shader, mesh)

	binds := 0
	for _, e := range cmd.log {
		if e == "SetPipeline" {
			binds++
		}
	}
	if binds != 1 {
		t.Errorf("Draw x2 identical state: want exactly 1 SetPipeline call, got %d", binds)
	}
}
