// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/internal/ctxt"
)

type globalKind int

const (
	globalTexture globalKind = iota
	globalSampler
	globalBuffer
)

// globalBinding is one entry of the per-frame global binding
// stack (§4.6).
type globalBinding struct {
	kind       globalKind
	set, slot  int
	view       driver.ImageView
	sampler    driver.Sampler
	buf        driver.Buffer
	off, size  int64
}

// resolvedBinding is the data the encoder assembled for one
// descriptor slot, compared byte-for-byte (field-for-field,
// since driver resource handles are Go interfaces wrapping
// comparable dynamic types) against the encoder's cache to
// decide whether the set needs rewriting (§4.6).
type resolvedBinding struct {
	typ  driver.DescType
	nr   int
	view driver.ImageView
	splr driver.Sampler
	buf  driver.Buffer
	off  int64
	size int64
}

func bindingsEqual(a, b []resolvedBinding) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Mesh describes the vertex/index buffers a Draw call consumes.
// Submesh ranges (DrawSubmesh) index into the same buffers.
type Mesh struct {
	VertexBufs []BufferHandle
	VertexOffs []int64
	IndexBuf   BufferHandle
	IndexOff   int64
	IndexFmt   driver.IndexFmt
	VertexCount int
	IndexCount  int
}

// RenderPassEncoder is handed to a render or compute pass's
// executable callback (§4.6). Encoders are only valid for the
// duration of that callback.
type RenderPassEncoder struct {
	fc      *FrameContext
	g       *Graph
	cmd     driver.CmdBuffer
	compute bool

	rpID    uint64
	subpass int
	rtCount int
	samples int
	vertex  []driver.VertexIn
	raster  driver.RasterState
	ds      driver.DSState
	blend   driver.BlendState

	lastPipeline uint64
	lastSets     [maxDescSets][]resolvedBinding

	lastVertBuf []driver.Buffer
	lastVertOff []int64
	lastIdxBuf  driver.Buffer
	lastIdxOff  int64
	lastIdxFmt  driver.IndexFmt
}

func newRenderPassEncoder(fc *FrameContext, g *Graph, cmd driver.CmdBuffer, rpID uint64, subpass, rtCount, samples int) *RenderPassEncoder {
	return &RenderPassEncoder{fc: fc, g: g, cmd: cmd, rpID: rpID, subpass: subpass, rtCount: rtCount, samples: samples}
}

func newComputePassEncoder(fc *FrameContext, g *Graph, cmd driver.CmdBuffer) *RenderPassEncoder {
	return &RenderPassEncoder{fc: fc, g: g, cmd: cmd, compute: true}
}

func (e *RenderPassEncoder) pushGlobal(b globalBinding) { e.fc.globals = append(e.fc.globals, b) }

// SetVertexLayout, SetRasterState, SetDepthStencilState and
// SetBlendState configure the fixed-function pipeline state the
// next Draw*/DrawProcedure call's PSOKey is built from. The
// graph itself only records attachments and dependencies, not
// fixed-function state, so the pass callback sets these once
// before issuing its draws (§4.6 supplement: pipelines must be
// built from a complete GraphState, and something has to supply
// the fields the graph doesn't carry).
func (e *RenderPassEncoder) SetVertexLayout(in []driver.VertexIn) *RenderPassEncoder {
	e.vertex = in
	return e
}

func (e *RenderPassEncoder) SetRasterState(r driver.RasterState) *RenderPassEncoder {
	e.raster = r
	return e
}

func (e *RenderPassEncoder) SetDepthStencilState(ds driver.DSState) *RenderPassEncoder {
	e.ds = ds
	return e
}

func (e *RenderPassEncoder) SetBlendState(b driver.BlendState) *RenderPassEncoder {
	e.blend = b
	return e
}

// SetGlobalTexture binds the shader-resource view of tex (a
// graph resource) to set/slot, resolving it through the view
// pool keyed by the texture's devirtualized identity.
func (e *RenderPassEncoder) SetGlobalTexture(set, slot int, tex TextureHandle) {
	precond(tex.Valid(), "set_global_texture: invalid texture handle")
	view := e.resolveView(tex)
	e.pushGlobal(globalBinding{kind: globalTexture, set: set, slot: slot, view: view.view})
}

// SetGlobalTextureHandle binds a caller-resolved view directly,
// bypassing the graph's own resources (e.g. a texture owned
// entirely outside this frame's graph).
func (e *RenderPassEncoder) SetGlobalTextureHandle(set, slot int, view driver.ImageView) {
	e.pushGlobal(globalBinding{kind: globalTexture, set: set, slot: slot, view: view})
}

// SetGlobalSampler binds a sampler to set/slot.
func (e *RenderPassEncoder) SetGlobalSampler(set, slot int, s driver.Sampler) {
	e.pushGlobal(globalBinding{kind: globalSampler, set: set, slot: slot, sampler: s})
}

// SetGlobalBuffer binds the whole of buf (a graph resource) to
// set/slot.
func (e *RenderPassEncoder) SetGlobalBuffer(set, slot int, buf BufferHandle) {
	precond(buf.Valid(), "set_global_buffer: invalid buffer handle")
	bn := &e.g.buffers[buf]
	b := bn.devirt
	if bn.manage == imported {
		b = bn.importedBuf
	}
	e.pushGlobal(globalBinding{kind: globalBuffer, set: set, slot: slot, buf: b, size: bn.size})
}

// SetGlobalBufferWithOffsetSize binds a sub-range of buf.
func (e *RenderPassEncoder) SetGlobalBufferWithOffsetSize(set, slot int, buf BufferHandle, offset, size int64) {
	precond(buf.Valid(), "set_global_buffer_with_offset_size: invalid buffer handle")
	bn := &e.g.buffers[buf]
	b := bn.devirt
	if bn.manage == imported {
		b = bn.importedBuf
	}
	e.pushGlobal(globalBinding{kind: globalBuffer, set: set, slot: slot, buf: b, off: offset, size: size})
}

// resolveView fetches the shader-resource view for tex: the
// whole texture if tex is not itself a SubResource node, or
// just the targeted (mip, slice) otherwise.
func (e *RenderPassEncoder) resolveView(tex TextureHandle) *gpuView {
	tn := &e.g.textures[tex]
	root := e.g.rootTexture(tex)
	rn := &e.g.textures[root]
	var texID uint64
	if rn.manage == imported {
		texID = e.fc.importedTextureID(rn)
	} else {
		precond(rn.devirt != nil, "resolve_view: texture has not been devirtualized")
		texID = rn.devirt.id
	}
	d := ViewDesc{TextureID: texID, Layer: 0, Layers: rn.arraySize, Level: 0, Levels: rn.mipLevels, Type: driver.IView2D}
	if rn.arraySize > 1 {
		d.Type = driver.IView2DArray
	}
	if tn.manage == subResource {
		d.Layer, d.Layers, d.Level, d.Levels = tn.slice, 1, tn.mip, 1
		d.Type = driver.IView2D
	}
	v, err := e.fc.viewPool.Get(d)
	precond(err == nil, "resolve_view: view pool miss")
	e.fc.viewByID[v.id] = v
	return v
}

// PushConstants writes data into the frame context's constant
// ring and registers it as the shader's named binding for the
// remainder of this pass (§4.6; see FrameContext.allocConst for
// why this core adapts push constants onto a buffer range
// instead of a native command).
func (e *RenderPassEncoder) PushConstants(shader *Shader, name string, data []byte) {
	set, nr, typ, ok := shader.findSlot(name)
	precond(ok, "push_constants: no descriptor named "+name)
	precond(typ == driver.DConstant, "push_constants: "+name+" is not a constant buffer binding")
	buf, off := e.fc.allocConst(data)
	e.pushGlobal(globalBinding{kind: globalBuffer, set: set, slot: nr, buf: buf, off: off, size: int64(len(data))})
}

// resolve walks shader's declared sets, producing one
// []resolvedBinding per set by scanning e.fc.globals from the
// top down for the first matching (kind, set, slot) entry,
// falling back to the default texture/sampler for Texture/
// Sampler descriptors (§4.6).
func (e *RenderPassEncoder) resolve(shader *Shader) [maxDescSets][]resolvedBinding {
	var out [maxDescSets][]resolvedBinding
	for si, entries := range shader.Sets {
		if len(entries) == 0 {
			continue
		}
		rs := make([]resolvedBinding, len(entries))
		for i, d := range entries {
			rs[i] = e.resolveSlot(si, d)
		}
		out[si] = rs
	}
	return out
}

func (e *RenderPassEncoder) resolveSlot(set int, d NamedDescriptor) resolvedBinding {
	for i := len(e.fc.globals) - 1; i >= 0; i-- {
		g := e.fc.globals[i]
		if g.set != set || g.slot != d.Nr {
			continue
		}
		switch d.Type {
		case driver.DTexture, driver.DImage:
			if g.kind == globalTexture {
				return resolvedBinding{typ: d.Type, nr: d.Nr, view: g.view}
			}
		case driver.DSampler:
			if g.kind == globalSampler {
				return resolvedBinding{typ: d.Type, nr: d.Nr, splr: g.sampler}
			}
		case driver.DConstant, driver.DBuffer:
			if g.kind == globalBuffer {
				return resolvedBinding{typ: d.Type, nr: d.Nr, buf: g.buf, off: g.off, size: g.size}
			}
		}
	}
	switch d.Type {
	case driver.DTexture, driver.DImage:
		return resolvedBinding{typ: d.Type, nr: d.Nr, view: e.fc.defaultView.view}
	case driver.DSampler:
		return resolvedBinding{typ: d.Type, nr: d.Nr, splr: e.fc.defaultSplr}
	default:
		precond(false, "resolve_slot: no global binding for "+d.Name+" descriptor")
		return resolvedBinding{}
	}
}

// bindShader performs pipeline and descriptor-set caching for
// the next draw/dispatch call (§4.6).
func (e *RenderPassEncoder) bindShader(shader *Shader, key PSOKey) *gpuPipeline {
	shader.register(e.fc)
	heaps := make([]driver.DescHeap, 0, maxDescSets)
	heapIDs := make([]uint64, 0, maxDescSets)
	resolved := e.resolve(shader)
	for si, entries := range shader.Sets {
		if len(entries) == 0 {
			continue
		}
		descs := make([]driver.Descriptor, len(entries))
		for i, d := range entries {
			descs[i] = d.Descriptor
		}
		heap, err := e.fc.checkoutDescHeap(DescSetDesc{Descriptors: descs})
		precond(err == nil, "bind_shader: descriptor heap pool miss")
		heaps = append(heaps, heap.heap)
		heapIDs = append(heapIDs, heap.id)
		if !bindingsEqual(resolved[si], e.lastSets[si]) {
			writeDescriptorSet(heap.heap, resolved[si])
			e.lastSets[si] = resolved[si]
		}
	}
	table, err := e.fc.descTable(heaps, heapIDs)
	precond(err == nil, "bind_shader: failed to build descriptor table")
	key.DescTableID = table.id

	var pl *gpuPipeline
	tier1 := !shader.IsCompute() && ctxt.DynamicStateTier1()
	dynKey := key
	if shader.IsCompute() {
		ck := CPSOKey{CodeID: shader.compCodeID, Func: shader.Comp.Name, DescTableID: table.id}
		pl, err = e.fc.compPool.Get(ck)
	} else {
		if tier1 {
			key = key.zeroDynamicState()
		}
		pl, err = e.fc.gfxPool.Get(key)
	}
	precond(err == nil, "bind_shader: pipeline pool miss")

	if pl.id != e.lastPipeline {
		e.cmd.SetPipeline(pl.pl)
		e.lastPipeline = pl.id
		for i := range e.lastSets {
			e.lastSets[i] = nil
		}
		if tier1 {
			e.cmd.SetTopology(dynKey.Topology)
			e.cmd.SetCullMode(dynKey.Raster.Cull)
			e.cmd.SetFrontFacing(dynKey.Raster.Clockwise)
			e.cmd.SetDepthTest(dynKey.DS.DepthTest)
			e.cmd.SetDepthWrite(dynKey.DS.DepthWrite)
			e.cmd.SetDepthCompare(dynKey.DS.DepthCmp)
		}
	}
	if len(heapIDs) > 0 {
		copies := make([]int, len(heapIDs))
		if e.compute {
			e.cmd.SetDescTableComp(table.table, 0, copies)
		} else {
			e.cmd.SetDescTableGraph(table.table, 0, copies)
		}
	}
	return pl
}

func writeDescriptorSet(heap driver.DescHeap, rs []resolvedBinding) {
	for _, r := range rs {
		switch r.typ {
		case driver.DTexture, driver.DImage:
			heap.SetImage(0, r.nr, 0, []driver.ImageView{r.view})
		case driver.DSampler:
			heap.SetSampler(0, r.nr, 0, []driver.Sampler{r.splr})
		case driver.DConstant, driver.DBuffer:
			heap.SetBuffer(0, r.nr, 0, []driver.Buffer{r.buf}, []int64{r.off}, []int64{r.size})
		}
	}
}

// Draw binds shader's pipeline for mesh's vertex layout and
// draws the whole mesh: an indexed draw of IndexCount indices
// if mesh declares an index buffer, otherwise a non-indexed
// draw over its full vertex range.
func (e *RenderPassEncoder) Draw(shader *Shader, mesh *Mesh) {
	if mesh.IndexBuf.Valid() {
		e.DrawSubmesh(shader, mesh, mesh.IndexCount, 0, mesh.VertexCount, 0)
		return
	}
	e.DrawSubmesh(shader, mesh, 0, 0, mesh.VertexCount, 0)
}

// DrawSubmesh issues an indexed draw if mesh declares an index
// buffer, otherwise a non-indexed draw over the given range.
func (e *RenderPassEncoder) DrawSubmesh(shader *Shader, mesh *Mesh, indexCount, firstIndex, vertexCount, firstVertex int) {
	precond(!e.compute, "draw_submesh: called on a compute encoder")
	key := e.graphicsKey(shader, mesh.VertexCount > 0)
	e.bindShader(shader, key)
	e.bindVertexBuffers(mesh)
	if mesh.IndexBuf.Valid() {
		e.bindIndexBuffer(mesh)
		e.cmd.DrawIndexed(indexCount, 1, firstIndex, firstVertex, 0)
		return
	}
	e.cmd.Draw(vertexCount, 1, firstVertex, 0)
}

// DrawProcedure issues a non-indexed draw with no bound vertex
// buffers (e.g. a fullscreen-triangle blit), as used by
// Graph.AddGenerateMipmap.
func (e *RenderPassEncoder) DrawProcedure(shader *Shader, topology driver.Topology, vertexCount int) {
	precond(!e.compute, "draw_procedure: called on a compute encoder")
	key := e.graphicsKey(shader, false)
	key.Topology = topology
	e.bindShader(shader, key)
	e.cmd.Draw(vertexCount, 1, 0, 0)
}

// Dispatch issues a compute dispatch. It must only be called
// from a compute pass's executable.
func (e *RenderPassEncoder) Dispatch(shader *Shader, x, y, z int) {
	precond(e.compute, "dispatch: called on a non-compute encoder")
	e.bindShader(shader, PSOKey{})
	e.cmd.Dispatch(x, y, z)
}

func (e *RenderPassEncoder) graphicsKey(shader *Shader, hasVertex bool) PSOKey {
	shader.register(e.fc)
	return PSOKey{
		VertCodeID: shader.vertCodeID, FragCodeID: shader.fragCodeID,
		VertFunc: shader.Vert.Name, FragFunc: shader.Frag.Name,
		Vertex: e.vertex, Topology: driver.TTriangle,
		Raster: e.raster, Samples: e.samples, DS: e.ds, Blend: e.blend,
		RenderPassID: e.rpID, Subpass: e.subpass, RTCount: e.rtCount,
	}
}

func (e *RenderPassEncoder) bindVertexBuffers(mesh *Mesh) {
	bufs := make([]driver.Buffer, len(mesh.VertexBufs))
	for i, h := range mesh.VertexBufs {
		bn := &e.g.buffers[h]
		bufs[i] = bn.devirt
		if bn.manage == imported {
			bufs[i] = bn.importedBuf
		}
	}
	if vertexBindingEqual(e.lastVertBuf, bufs, e.lastVertOff, mesh.VertexOffs) {
		return
	}
	e.cmd.SetVertexBuf(0, bufs, mesh.VertexOffs)
	e.lastVertBuf, e.lastVertOff = bufs, mesh.VertexOffs
}

func vertexBindingEqual(a, b []driver.Buffer, ao, bo []int64) bool {
	if len(a) != len(b) || len(ao) != len(bo) {
		return false
	}
	for i := range a {
		if a[i] != b[i] || ao[i] != bo[i] {
			return false
		}
	}
	return true
}

func (e *RenderPassEncoder) bindIndexBuffer(mesh *Mesh) {
	bn := &e.g.buffers[mesh.IndexBuf]
	buf := bn.devirt
	if bn.manage == imported {
		buf = bn.importedBuf
	}
	if e.lastIdxBuf == buf && e.lastIdxOff == mesh.IndexOff && e.lastIdxFmt == mesh.IndexFmt {
		return
	}
	e.cmd.SetIndexBuf(mesh.IndexFmt, buf, mesh.IndexOff)
	e.lastIdxBuf, e.lastIdxOff, e.lastIdxFmt = buf, mesh.IndexOff, mesh.IndexFmt
}

// UploadEncoder exposes the mapped range of an upload pass's
// staging buffer to its optional pre-copy callback (§4.5).
type UploadEncoder struct {
	Bytes []byte
}
