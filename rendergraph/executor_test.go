// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"testing"

	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/internal/ctxt"
)

// TestExecuteS1EmptyFrame covers scenario S1: a frame that only
// imports the backbuffer and presents it records exactly one
// texture transition (Undefined->Present) and no other work.
func TestExecuteS1EmptyFrame(t *testing.T) {
	gpu := newFakeGPU()
	ctxt.Use(gpu)
	fc, err := NewFrameContext(gpu)
	if err != nil {
		t.Fatalf("NewFrameContext: %v", err)
	}
	defer fc.Destroy()

	g := New()
	b := g.ImportBackbuffer(&fakeImage{layers: 1, levels: 1}, 64, 64, driver.RGBA8un)
	g.Present(b)

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cmd, err := Execute(cg, fc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	cb := cmd.(*fakeCmdBuffer)

	transitions := 0
	for _, e := range cb.log {
		if e == "Transition" {
			transitions++
		}
	}
	if transitions != 1 {
		t.Errorf("S1: want exactly 1 transition, got %d (log=%v)", transitions, cb.log)
	}
	for _, e := range cb.log {
		if e == "BeginPass" || e == "Draw" || e == "Dispatch" {
			t.Errorf("S1: empty frame should record no rendering work, found %q in log %v", e, cb.log)
		}
	}
	if cb.log[0] != "Begin" || cb.log[len(cb.log)-1] != "End" {
		t.Errorf("Execute: want log bracketed by Begin/End, got %v", cb.log)
	}
}

// TestExecuteS2SingleClear covers scenario S2: a single color
// pass clears and presents the backbuffer. Execute records one
// BeginPass/EndPass pair and a framebuffer/render pass are
// devirtualized.
func TestExecuteS2SingleClear(t *testing.T) {
	gpu := newFakeGPU()
	ctxt.Use(gpu)
	fc, err := NewFrameContext(gpu)
	if err != nil {
		t.Fatalf("NewFrameContext: %v", err)
	}
	defer fc.Destroy()

	g := New()
	b := g.ImportBackbuffer(&fakeImage{layers: 1, levels: 1}, 64, 64, driver.RGBA8un)
	r := g.AddRenderPass("clear")
	r.AddColorAttachment(b, driver.LClear, driver.SStore, [4]float32{0.188, 0.125, 0.188, 1.0})
	g.Present(b)

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cmd, err := Execute(cg, fc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	cb := cmd.(*fakeCmdBuffer)

	begins, ends := 0, 0
	for _, e := range cb.log {
		if e == "BeginPass" {
			begins++
		}
		if e == "EndPass" {
			ends++
		}
	}
	if begins != 1 || ends != 1 {
		t.Errorf("S2: want exactly 1 BeginPass/EndPass pair, got %d/%d (log=%v)", begins, ends, cb.log)
	}
}

// TestExecuteS3TransientDepth covers scenario S3: a transient
// depth attachment is devirtualized and destroyed within the
// same render pass dispatch, and the frame still completes.
func TestExecuteS3TransientDepth(t *testing.T) {
	gpu := newFakeGPU()
	ctxt.Use(gpu)
	fc, err := NewFrameContext(gpu)
	if err != nil {
		t.Fatalf("NewFrameContext: %v", err)
	}
	defer fc.Destroy()

	g := New()
	b := g.ImportBackbuffer(&fakeImage{layers: 1, levels: 1}, 64, 64, driver.RGBA8un)
	d := g.DeclareTexture(64, 64, 1, 1, 1, driver.D24unS8ui)
	r := g.AddRenderPass("r")
	r.AddColorAttachment(b, driver.LClear, driver.SStore, [4]float32{})
	r.AddDepthAttachment(d, driver.LClear, driver.LDontCare, driver.SDontCare, driver.SDontCare, 0, 0)
	g.Present(b)

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := Execute(cg, fc); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if g.textures[d].devirt != nil {
		t.Errorf("S3: want the transient depth texture released by end of frame, still held")
	}
	if fc.texPool.Len() == 0 {
		t.Errorf("S3: want the released depth texture held in the pool for reuse, pool is empty")
	}
}

// TestExecuteS6UploadScheduling covers scenario S6: uploading
// data into an imported buffer stages through an auto-declared
// CPU-only buffer and the bytes actually reach the destination
// through the recorded CopyBuffer.
func TestExecuteS6UploadScheduling(t *testing.T) {
	gpu := newFakeGPU()
	ctxt.Use(gpu)
	fc, err := NewFrameContext(gpu)
	if err != nil {
		t.Fatalf("NewFrameContext: %v", err)
	}
	defer fc.Destroy()

	dst := &fakeBuffer{data: make([]byte, 256), visible: true}
	g := New()
	h := g.ImportBuffer(dst, driver.DConstant, MemGPUOnly)
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	g.AddUploadBufferPass("upload", h, payload, 0)

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(cg.Passes) != 1 {
		t.Fatalf("S6: want the upload pass to survive (imported dest keeps it alive), got %d passes", len(cg.Passes))
	}

	cmd, err := Execute(cg, fc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	cb := cmd.(*fakeCmdBuffer)

	found := false
	for _, e := range cb.log {
		if e == "CopyBuffer" {
			found = true
		}
	}
	if !found {
		t.Fatalf("S6: want a CopyBuffer recorded, log=%v", cb.log)
	}
	for i, want := range payload {
		if dst.data[i] != want {
			t.Errorf("S6: byte %d: want 0x%02X, got 0x%02X (upload did not reach destination)", i, want, dst.data[i])
		}
	}

	// The staging buffer is transient and managed: it must have
	// been released back to the pool, not left devirtualized.
	stagingHandle := g.passes[0].stagingBuf
	if g.buffers[stagingHandle].devirt != nil {
		t.Errorf("S6: want the staging buffer released after upload, still held")
	}
}
