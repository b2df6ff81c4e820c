// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"errors"
	"fmt"

	"github.com/gviegas/rendergraph/driver"
)

// Fake driver.GPU implementation, grounded on the mock-struct-
// per-interface pattern used to unit test HAL-shaped code
// without a real device. Every type here does just enough to
// let Compile/Execute and the object pools run end-to-end:
// buffers carry a real backing slice (the encoder/executor
// write into it), images/views/heaps record the parameters
// they were created with so tests can assert on them, and
// everything else is a trivial no-op.

type fakeBuffer struct {
	data    []byte
	visible bool
}

func (b *fakeBuffer) Destroy()        {}
func (b *fakeBuffer) Visible() bool   { return b.visible }
func (b *fakeBuffer) Bytes() []byte {
	if !b.visible {
		return nil
	}
	return b.data
}
func (b *fakeBuffer) Cap() int64 { return int64(len(b.data)) }

type fakeImage struct {
	format  driver.PixelFmt
	size    driver.Dim3D
	layers  int
	levels  int
	samples int
	usage   driver.Usage
	views   []*fakeImageView
}

func (img *fakeImage) Destroy() {}

func (img *fakeImage) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	if layer < 0 || layer+layers > img.layers || level < 0 || level+levels > img.levels {
		return nil, fmt.Errorf("fakedriver: view range out of bounds")
	}
	v := &fakeImageView{img: img, typ: typ, layer: layer, layers: layers, level: level, levels: levels}
	img.views = append(img.views, v)
	return v, nil
}

type fakeImageView struct {
	img                  *fakeImage
	typ                  driver.ViewType
	layer, layers        int
	level, levels        int
}

func (v *fakeImageView) Destroy() {}

type fakeSampler struct{ spln driver.Sampling }

func (*fakeSampler) Destroy() {}

type fakeShaderCode struct{ data []byte }

func (*fakeShaderCode) Destroy() {}

type fakeDescHeap struct {
	descs []driver.Descriptor
	count int

	buffers  map[int][]driver.Buffer
	bufOff   map[int][]int64
	bufSize  map[int][]int64
	images   map[int][]driver.ImageView
	samplers map[int][]driver.Sampler
}

func newFakeDescHeap(descs []driver.Descriptor) *fakeDescHeap {
	return &fakeDescHeap{
		descs:    descs,
		buffers:  make(map[int][]driver.Buffer),
		bufOff:   make(map[int][]int64),
		bufSize:  make(map[int][]int64),
		images:   make(map[int][]driver.ImageView),
		samplers: make(map[int][]driver.Sampler),
	}
}

func (h *fakeDescHeap) Destroy() {}

func (h *fakeDescHeap) New(n int) error {
	h.count = n
	return nil
}

func (h *fakeDescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	h.buffers[nr] = buf
	h.bufOff[nr] = off
	h.bufSize[nr] = size
}

func (h *fakeDescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView) {
	h.images[nr] = iv
}

func (h *fakeDescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler) {
	h.samplers[nr] = splr
}

func (h *fakeDescHeap) Count() int { return h.count }

type fakeDescTable struct{ heaps []driver.DescHeap }

func (*fakeDescTable) Destroy() {}

type fakePipeline struct{ state any }

func (*fakePipeline) Destroy() {}

type fakeFramebuf struct {
	views                 []driver.ImageView
	width, height, layers int
}

func (*fakeFramebuf) Destroy() {}

type fakeRenderPass struct {
	att []driver.Attachment
	sub []driver.Subpass
}

func (*fakeRenderPass) Destroy() {}

func (rp *fakeRenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	if len(iv) != len(rp.att) {
		return nil, fmt.Errorf("fakedriver: NewFB view count does not match attachment count")
	}
	return &fakeFramebuf{views: iv, width: width, height: height, layers: layers}, nil
}

type fakeQueryPool struct {
	count int
	ticks []uint64
}

func (*fakeQueryPool) Destroy() {}

func (qp *fakeQueryPool) Count() int { return qp.count }

func (qp *fakeQueryPool) Resolve() ([]uint64, error) {
	return qp.ticks, nil
}

// fakeCmdBuffer records every command it receives as a short
// opcode string, so tests can assert on the recorded sequence
// without needing a real backend to execute against.
type fakeCmdBuffer struct {
	log       []string
	recording bool

	lastClear       []driver.ClearValue
	lastViewport    []driver.Viewport
	lastScissor     []driver.Scissor
	lastBarriers    []driver.Barrier
	lastTransitions []driver.Transition
	lastBufferCopy  *driver.BufferCopy
	lastBufImgCopy  *driver.BufImgCopy
}

func (cb *fakeCmdBuffer) Destroy() {}

func (cb *fakeCmdBuffer) Begin() error {
	cb.log = append(cb.log, "Begin")
	cb.recording = true
	return nil
}

func (cb *fakeCmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	cb.log = append(cb.log, "BeginPass")
}

func (cb *fakeCmdBuffer) NextSubpass() { cb.log = append(cb.log, "NextSubpass") }
func (cb *fakeCmdBuffer) EndPass()     { cb.log = append(cb.log, "EndPass") }

func (cb *fakeCmdBuffer) BeginWork(wait bool) { cb.log = append(cb.log, "BeginWork") }
func (cb *fakeCmdBuffer) EndWork()            { cb.log = append(cb.log, "EndWork") }

func (cb *fakeCmdBuffer) BeginBlit(wait bool) { cb.log = append(cb.log, "BeginBlit") }
func (cb *fakeCmdBuffer) EndBlit()            { cb.log = append(cb.log, "EndBlit") }

func (cb *fakeCmdBuffer) SetPipeline(pl driver.Pipeline) { cb.log = append(cb.log, "SetPipeline") }
func (cb *fakeCmdBuffer) SetViewport(vp []driver.Viewport) { cb.log = append(cb.log, "SetViewport") }
func (cb *fakeCmdBuffer) SetScissor(sciss []driver.Scissor) { cb.log = append(cb.log, "SetScissor") }
func (cb *fakeCmdBuffer) SetBlendColor(r, g, b, a float32)   {}
func (cb *fakeCmdBuffer) SetStencilRef(value uint32)         {}

func (cb *fakeCmdBuffer) SetTopology(topology driver.Topology) {
	cb.log = append(cb.log, "SetTopology")
}
func (cb *fakeCmdBuffer) SetCullMode(cull driver.CullMode) { cb.log = append(cb.log, "SetCullMode") }
func (cb *fakeCmdBuffer) SetFrontFacing(clockwise bool)    { cb.log = append(cb.log, "SetFrontFacing") }
func (cb *fakeCmdBuffer) SetDepthTest(enable bool)         { cb.log = append(cb.log, "SetDepthTest") }
func (cb *fakeCmdBuffer) SetDepthWrite(enable bool)        { cb.log = append(cb.log, "SetDepthWrite") }
func (cb *fakeCmdBuffer) SetDepthCompare(cmp driver.CmpFunc) {
	cb.log = append(cb.log, "SetDepthCompare")
}

func (cb *fakeCmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	cb.log = append(cb.log, "SetVertexBuf")
}

func (cb *fakeCmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	cb.log = append(cb.log, "SetIndexBuf")
}

func (cb *fakeCmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	cb.log = append(cb.log, "SetDescTableGraph")
}

func (cb *fakeCmdBuffer) SetDescTableComp(table driver.DescTable, start int, heapCopy []int) {
	cb.log = append(cb.log, "SetDescTableComp")
}

func (cb *fakeCmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	cb.log = append(cb.log, "Draw")
}

func (cb *fakeCmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	cb.log = append(cb.log, "DrawIndexed")
}

func (cb *fakeCmdBuffer) Dispatch(grpCountX, grpCountY, grpCountZ int) {
	cb.log = append(cb.log, "Dispatch")
}

func (cb *fakeCmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	cb.log = append(cb.log, "CopyBuffer")
	dst := param.To.(*fakeBuffer)
	src := param.From.(*fakeBuffer)
	copy(dst.data[param.ToOff:], src.data[param.FromOff:param.FromOff+param.Size])
}

func (cb *fakeCmdBuffer) CopyImage(param *driver.ImageCopy) { cb.log = append(cb.log, "CopyImage") }

func (cb *fakeCmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	cb.log = append(cb.log, "CopyBufToImg")
}

func (cb *fakeCmdBuffer) CopyImgToBuf(param *driver.BufImgCopy) {
	cb.log = append(cb.log, "CopyImgToBuf")
}

func (cb *fakeCmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	cb.log = append(cb.log, "Fill")
}

func (cb *fakeCmdBuffer) Barrier(b []driver.Barrier) { cb.log = append(cb.log, "Barrier") }
func (cb *fakeCmdBuffer) Transition(t []driver.Transition) {
	cb.log = append(cb.log, "Transition")
	cb.lastTransitions = append(cb.lastTransitions, t...)
}

func (cb *fakeCmdBuffer) WriteTimestamp(qp driver.QueryPool, index int) {
	cb.log = append(cb.log, "WriteTimestamp")
}

func (cb *fakeCmdBuffer) End() error {
	cb.log = append(cb.log, "End")
	cb.recording = false
	return nil
}

func (cb *fakeCmdBuffer) Reset() error {
	cb.log = []string{}
	cb.recording = false
	return nil
}

// fakeGPU implements driver.GPU over the fake types above.
type fakeGPU struct {
	limits driver.Limits
}

func newFakeGPU() *fakeGPU {
	return &fakeGPU{limits: driver.Limits{
		MaxImage2D:          8192,
		MaxLayers:           2048,
		MaxDescHeaps:        4,
		MaxDBuffer:          16,
		MaxDImage:           16,
		MaxDConstant:        16,
		MaxDTexture:         32,
		MaxDSampler:         16,
		MaxDBufferRange:     1 << 30,
		MaxDConstantRange:   1 << 16,
		MaxColorTargets:     8,
		MaxFBSize:           [2]int{8192, 8192},
		MaxFBLayers:         2048,
		MaxViewports:        16,
		MaxVertexIn:         16,
		MaxFragmentIn:       16,
		MaxDispatch:         [3]int{65535, 65535, 65535},
		MaxTimestampQueries: 4096,
	}}
}

func (g *fakeGPU) Driver() driver.Driver { return nil }

func (g *fakeGPU) Commit(cb []driver.CmdBuffer, ch chan<- error) {
	if ch != nil {
		ch <- nil
	}
}

func (g *fakeGPU) NewCmdBuffer() (driver.CmdBuffer, error) { return &fakeCmdBuffer{}, nil }

func (g *fakeGPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	a := make([]driver.Attachment, len(att))
	copy(a, att)
	return &fakeRenderPass{att: a, sub: sub}, nil
}

func (g *fakeGPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	return &fakeShaderCode{data: data}, nil
}

func (g *fakeGPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return newFakeDescHeap(ds), nil
}

func (g *fakeGPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	return &fakeDescTable{heaps: dh}, nil
}

func (g *fakeGPU) NewPipeline(state any) (driver.Pipeline, error) {
	switch state.(type) {
	case *driver.GraphState, *driver.CompState:
		return &fakePipeline{state: state}, nil
	default:
		return nil, errors.New("fakedriver: NewPipeline requires *GraphState or *CompState")
	}
}

func (g *fakeGPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, errors.New("fakedriver: NewBuffer requires a positive size")
	}
	return &fakeBuffer{data: make([]byte, size), visible: visible}, nil
}

func (g *fakeGPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	if size.Width <= 0 || size.Height <= 0 || size.Depth <= 0 {
		return nil, errors.New("fakedriver: NewImage requires positive dimensions")
	}
	return &fakeImage{format: pf, size: size, layers: layers, levels: levels, samples: samples, usage: usg}, nil
}

func (g *fakeGPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	return &fakeSampler{spln: *spln}, nil
}

func (g *fakeGPU) NewQueryPool(count int) (driver.QueryPool, error) {
	return &fakeQueryPool{count: count, ticks: make([]uint64, count)}, nil
}

func (g *fakeGPU) Limits() driver.Limits { return g.limits }
