// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"reflect"
	"testing"

	"github.com/gviegas/rendergraph/driver"
)

// TestCompilePreservesOrder covers property 1: compilation
// preserves the recorded order of surviving passes.
func TestCompilePreservesOrder(t *testing.T) {
	g := New()
	b := g.ImportBackbuffer(&fakeImage{layers: 1, levels: 1}, 64, 64, driver.RGBA8un)
	var names []string
	for i := 0; i < 5; i++ {
		rb := g.AddRenderPass("r")
		rb.AddColorAttachment(b, driver.LLoad, driver.SStore, [4]float32{})
		names = append(names, "r")
	}
	g.Present(b)
	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(cg.Passes) != 6 {
		t.Fatalf("Compile: want 6 surviving passes, got %d", len(cg.Passes))
	}
	for i, cp := range cg.Passes {
		if cp.PassIndex != i {
			t.Errorf("Compile: pass order not preserved at %d: got PassIndex %d", i, cp.PassIndex)
		}
	}
}

// TestCompileDevirtualizeDestroyOnce covers property 2: every
// surviving managed resource appears in exactly one pass's
// devirtualize and exactly one pass's destroy, with
// devirtualize_pass <= destroy_pass.
func TestCompileDevirtualizeDestroyOnce(t *testing.T) {
	g := New()
	b := g.ImportBackbuffer(&fakeImage{layers: 1, levels: 1}, 64, 64, driver.RGBA8un)
	t1 := g.DeclareTexture(64, 64, 1, 1, 1, driver.RGBA8un)
	p1 := g.AddRenderPass("p1")
	p1.AddColorAttachment(t1, driver.LClear, driver.SStore, [4]float32{})
	p2 := g.AddRenderPass("p2")
	p2.Sample(t1)
	p2.AddColorAttachment(b, driver.LClear, driver.SStore, [4]float32{})
	g.Present(b)

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	devirtCount, destroyCount := 0, 0
	devirtPos, destroyPos := -1, -1
	for i, cp := range cg.Passes {
		for _, r := range cp.Devirtualize {
			if !r.isBuffer && r.tex == t1 {
				devirtCount++
				devirtPos = i
			}
		}
		for _, r := range cp.Destroy {
			if !r.isBuffer && r.tex == t1 {
				destroyCount++
				destroyPos = i
			}
		}
	}
	if devirtCount != 1 || destroyCount != 1 {
		t.Fatalf("Compile: want exactly one devirtualize and one destroy for t1, got %d/%d", devirtCount, destroyCount)
	}
	if devirtPos > destroyPos {
		t.Errorf("Compile: devirtualize_pass (%d) > destroy_pass (%d)", devirtPos, destroyPos)
	}
}

// TestCompileHoldOnLast covers property 3: holdOnLast resources
// are destroyed at the last surviving pass.
func TestCompileHoldOnLast(t *testing.T) {
	g := New()
	b := g.ImportBackbuffer(&fakeImage{layers: 1, levels: 1}, 64, 64, driver.RGBA8un)
	t1 := g.DeclareTexture(64, 64, 1, 1, 1, driver.RGBA8un)
	g.textures[t1].holdOnLast = true

	p1 := g.AddRenderPass("p1")
	p1.AddColorAttachment(t1, driver.LClear, driver.SStore, [4]float32{})
	// p2 reads t1 into the backbuffer so t1 survives culling;
	// without holdOnLast, t1's last surviving pass would be p2.
	p2 := g.AddRenderPass("p2")
	p2.Sample(t1)
	p2.AddColorAttachment(b, driver.LClear, driver.SStore, [4]float32{})
	g.AddHoldPass("keep_alive")
	g.Present(b)

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	lastIdx := len(cg.Passes) - 1
	found := false
	for _, r := range cg.Passes[lastIdx].Destroy {
		if !r.isBuffer && r.tex == t1 {
			found = true
		}
	}
	if !found {
		t.Errorf("Compile: holdOnLast resource not destroyed at last surviving pass (%d)", lastIdx)
	}
}

// TestCompileCullsDeadBranch covers property 12 and scenario S4:
// a pass whose only writes target culled resources, with no
// persistent consumer, is itself culled.
func TestCompileCullsDeadBranch(t *testing.T) {
	g := New()
	b := g.ImportBackbuffer(&fakeImage{layers: 1, levels: 1}, 64, 64, driver.RGBA8un)
	t1 := g.DeclareTexture(64, 64, 1, 1, 1, driver.RGBA8un)
	t2 := g.DeclareTexture(64, 64, 1, 1, 1, driver.RGBA8un)

	p1 := g.AddRenderPass("p1")
	p1.AddColorAttachment(t1, driver.LClear, driver.SStore, [4]float32{})
	p2 := g.AddRenderPass("p2")
	p2.Sample(t1)
	p2.AddColorAttachment(t2, driver.LClear, driver.SStore, [4]float32{})
	g.Present(b)

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(cg.Passes) != 1 {
		t.Fatalf("Compile: want only the Present pass to survive, got %d passes", len(cg.Passes))
	}
	if g.passes[cg.Passes[0].PassIndex].typ != passPresent {
		t.Errorf("Compile: surviving pass is not Present")
	}
}

// TestCompileS1EmptyFrame covers scenario S1: a lone imported
// backbuffer presented with no other work compiles down to a
// single surviving Present pass.
func TestCompileS1EmptyFrame(t *testing.T) {
	g := New()
	b := g.ImportBackbuffer(&fakeImage{layers: 1, levels: 1}, 64, 64, driver.RGBA8un)
	g.Present(b)

	cg, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(cg.Passes) != 1 {
		t.Fatalf("Compile: want 1 surviving pass, got %d", len(cg.Passes))
	}
	if g.passes[cg.Passes[0].PassIndex].typ != passPresent {
		t.Errorf("Compile: surviving pass is not Present")
	}
}

// TestCompileIdempotentReRecording covers property 9:
// re-recording the same graph shape twice yields identical
// compiled orderings.
func TestCompileIdempotentReRecording(t *testing.T) {
	build := func() *Graph {
		g := New()
		b := g.ImportBackbuffer(&fakeImage{layers: 1, levels: 1}, 64, 64, driver.RGBA8un)
		t1 := g.DeclareTexture(64, 64, 1, 1, 1, driver.RGBA8un)
		p1 := g.AddRenderPass("p1")
		p1.AddColorAttachment(t1, driver.LClear, driver.SStore, [4]float32{})
		p2 := g.AddRenderPass("p2")
		p2.Sample(t1)
		p2.AddColorAttachment(b, driver.LClear, driver.SStore, [4]float32{})
		g.Present(b)
		return g
	}

	cg1, err := Compile(build())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cg2, err := Compile(build())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(cg1.Passes) != len(cg2.Passes) {
		t.Fatalf("Compile: pass count differs across identical recordings: %d vs %d", len(cg1.Passes), len(cg2.Passes))
	}
	for i := range cg1.Passes {
		if cg1.Passes[i].PassIndex != cg2.Passes[i].PassIndex {
			t.Errorf("Compile: pass %d PassIndex differs: %d vs %d", i, cg1.Passes[i].PassIndex, cg2.Passes[i].PassIndex)
		}
		if !reflect.DeepEqual(cg1.Passes[i].Devirtualize, cg2.Passes[i].Devirtualize) {
			t.Errorf("Compile: pass %d Devirtualize differs across identical recordings", i)
		}
		if !reflect.DeepEqual(cg1.Passes[i].Destroy, cg2.Passes[i].Destroy) {
			t.Errorf("Compile: pass %d Destroy differs across identical recordings", i)
		}
	}
}
