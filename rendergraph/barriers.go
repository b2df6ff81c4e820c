// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// stateTraits is the driver-level Sync/Access/Layout triple a
// render-graph State maps onto (§4.5.1). Buffers ignore Layout.
type stateTraits struct {
	sync   driver.Sync
	access driver.Access
	layout driver.Layout
}

var stateTable = [...]stateTraits{
	Undefined:               {driver.SNone, driver.ANone, driver.LUndefined},
	RenderTarget:             {driver.SColorOutput, driver.AColorRead | driver.AColorWrite, driver.LColorTarget},
	DepthWrite:               {driver.SDSOutput, driver.ADSRead | driver.ADSWrite, driver.LDSTarget},
	ShaderResource:           {driver.SVertexShading | driver.SFragmentShading | driver.SComputeShading, driver.AShaderRead, driver.LShaderRead},
	CopySource:               {driver.SCopy, driver.ACopyRead, driver.LCopySrc},
	CopyDest:                 {driver.SCopy, driver.ACopyWrite, driver.LCopyDst},
	VertexAndConstantBuffer:  {driver.SVertexInput | driver.SVertexShading, driver.AVertexBufRead | driver.AShaderRead, driver.LUndefined},
	IndexBuffer:              {driver.SVertexInput, driver.AIndexBufRead, driver.LUndefined},
	UnorderedAccess:          {driver.SComputeShading, driver.AShaderRead | driver.AShaderWrite, driver.LCommon},
	Present:                  {driver.SNone, driver.ANone, driver.LPresent},
}

func (s State) traits() stateTraits { return stateTable[s] }

// forcedTexture reports whether usage always triggers a barrier
// regardless of the tracked state, per §4.5.1.
func forcedTexture(usage State) bool {
	return usage == RenderTarget || usage == DepthWrite || usage == CopyDest
}

func forcedBuffer(usage State) bool { return usage == CopyDest }

// barrierBatch accumulates buffer/texture barriers, flushing in
// groups of up to 16 of each per §4.5.1.
type barrierBatch struct {
	cmd  driver.CmdBuffer
	bufs []driver.Barrier
	texs []driver.Transition
}

const barrierBatchLimit = 16

func (bb *barrierBatch) addBuffer(b driver.Barrier) {
	bb.bufs = append(bb.bufs, b)
	if len(bb.bufs) >= barrierBatchLimit {
		bb.flush()
	}
}

func (bb *barrierBatch) addTexture(t driver.Transition) {
	bb.texs = append(bb.texs, t)
	if len(bb.texs) >= barrierBatchLimit {
		bb.flush()
	}
}

func (bb *barrierBatch) flush() {
	if len(bb.bufs) > 0 {
		bb.cmd.Barrier(bb.bufs)
		bb.bufs = bb.bufs[:0]
	}
	if len(bb.texs) > 0 {
		bb.cmd.Transition(bb.texs)
		bb.texs = bb.texs[:0]
	}
}

// subresourceIndex maps a (mip, slice) pair onto the flat
// curStates index used by textureNode (§4.5.1: "mipLevel +
// arraySlice × mipCount").
func subresourceIndex(mipLevels, mip, slice int) int { return mip + slice*mipLevels }

// planEdge applies one edge's barrier rule to its resource and
// appends the resulting driver-level barrier(s) to bb. g holds
// the mutable cur_state tracked per resource (§4.5.1).
func planEdge(g *Graph, e edgeRef, bb *barrierBatch) {
	if e.res.isBuffer {
		planBufferEdge(g, e, bb)
		return
	}
	planTextureEdge(g, e, bb)
}

func planBufferEdge(g *Graph, e edgeRef, bb *barrierBatch) {
	bn := &g.buffers[e.res.buf]
	if bn.curState == e.usage && !forcedBuffer(e.usage) {
		return
	}
	before, after := bn.curState.traits(), e.usage.traits()
	bb.addBuffer(driver.Barrier{
		SyncBefore: before.sync, SyncAfter: after.sync,
		AccessBefore: before.access, AccessAfter: after.access,
	})
	bn.curState = e.usage
}

func planTextureEdge(g *Graph, e edgeRef, bb *barrierBatch) {
	isSub := g.textures[e.res.tex].manage == subResource
	root := g.rootTexture(e.res.tex)
	rn := &g.textures[root]
	n := rn.mipLevels * rn.arraySize
	if len(rn.curStates) != n {
		rn.curStates = make([]State, n)
	}
	single := n == 1

	if isSub {
		tn := &g.textures[e.res.tex]
		idx := subresourceIndex(rn.mipLevels, tn.mip, tn.slice)
		emitSubresourceBarrier(rn, idx, e.usage, bb)
		rn.statesConsistent = false
		return
	}

	if rn.statesConsistent || single {
		cur := rn.curStates[0]
		if cur != e.usage || forcedTexture(e.usage) {
			before, after := cur.traits(), e.usage.traits()
			bb.addTexture(driver.Transition{
				Barrier:      driver.Barrier{SyncBefore: before.sync, SyncAfter: after.sync, AccessBefore: before.access, AccessAfter: after.access},
				LayoutBefore: before.layout, LayoutAfter: after.layout,
			})
			for i := range rn.curStates {
				rn.curStates[i] = e.usage
			}
		}
		rn.statesConsistent = true
		return
	}

	for i := range rn.curStates {
		if rn.curStates[i] != e.usage || forcedTexture(e.usage) {
			before, after := rn.curStates[i].traits(), e.usage.traits()
			bb.addTexture(driver.Transition{
				Barrier:      driver.Barrier{SyncBefore: before.sync, SyncAfter: after.sync, AccessBefore: before.access, AccessAfter: after.access},
				LayoutBefore: before.layout, LayoutAfter: after.layout,
			})
			rn.curStates[i] = e.usage
		}
	}
	rn.statesConsistent = true
}

// emitSubresourceBarrier handles the SubResource-edge case:
// read/modify only the targeted slot, never touching
// statesConsistent's implied whole-resource comparison.
func emitSubresourceBarrier(rn *textureNode, idx int, usage State, bb *barrierBatch) {
	cur := rn.curStates[idx]
	if cur == usage && !forcedTexture(usage) {
		return
	}
	before, after := cur.traits(), usage.traits()
	bb.addTexture(driver.Transition{
		Barrier:      driver.Barrier{SyncBefore: before.sync, SyncAfter: after.sync, AccessBefore: before.access, AccessAfter: after.access},
		LayoutBefore: before.layout, LayoutAfter: after.layout,
	})
	rn.curStates[idx] = usage
}

// planPassBarriers applies §4.5.1 to every edge of a pass, reads
// first then writes, flushing any remaining batched barriers at
// the end.
func planPassBarriers(g *Graph, p *passNode, cmd driver.CmdBuffer) {
	bb := &barrierBatch{cmd: cmd}
	for _, e := range p.reads {
		planEdge(g, e, bb)
	}
	for _, e := range p.writes {
		planEdge(g, e, bb)
	}
	bb.flush()
}
