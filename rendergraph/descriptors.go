// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"encoding/binary"
	"math"

	"github.com/gviegas/rendergraph/driver"
)

// cbuf accumulates a canonical byte encoding for a descriptor.
// Every Put* call appends a fixed number of bytes, so two
// descriptors with the same field values always produce
// identical output regardless of Go's struct padding rules —
// the "descriptor → canonical bytes" normalization the design
// notes recommend in place of trusting memory layout.
type cbuf struct{ b []byte }

func (c *cbuf) PutU8(v uint8) { c.b = append(c.b, v) }

func (c *cbuf) PutBool(v bool) {
	if v {
		c.PutU8(1)
	} else {
		c.PutU8(0)
	}
}

func (c *cbuf) PutI32(v int) { c.b = binary.LittleEndian.AppendUint32(c.b, uint32(int32(v))) }
func (c *cbuf) PutU32(v uint32) { c.b = binary.LittleEndian.AppendUint32(c.b, v) }
func (c *cbuf) PutI64(v int64)  { c.b = binary.LittleEndian.AppendUint64(c.b, uint64(v)) }
func (c *cbuf) PutU64(v uint64) { c.b = binary.LittleEndian.AppendUint64(c.b, v) }
func (c *cbuf) PutF32(v float32) {
	c.b = binary.LittleEndian.AppendUint32(c.b, math.Float32bits(v))
}
func (c *cbuf) PutStr(v string) {
	c.PutI32(len(v))
	c.b = append(c.b, v...)
}
func (c *cbuf) Bytes() []byte { return c.b }

// TextureDesc is the pool key for a transient render-target
// texture (§4.2/§4.5: width×height×depth×mipLevels×format,
// with depth-format inference handled by the caller).
type TextureDesc struct {
	Width, Height, Depth int
	MipLevels, Layers    int
	Format               driver.PixelFmt
	Samples              int
	Usage                driver.Usage
}

func (d TextureDesc) canonicalBytes() []byte {
	var c cbuf
	c.PutI32(d.Width)
	c.PutI32(d.Height)
	c.PutI32(d.Depth)
	c.PutI32(d.MipLevels)
	c.PutI32(d.Layers)
	c.PutI32(int(d.Format))
	c.PutI32(d.Samples)
	c.PutI32(int(d.Usage))
	return c.Bytes()
}

// BufferDesc is the pool key for a transient buffer (§4.2:
// size×type×memory usage). Size is already rounded up to the
// next power of two by the builder for managed buffers.
type BufferDesc struct {
	Size     int64
	DescType driver.DescType
	Visible  bool
	Usage    driver.Usage
}

func (d BufferDesc) canonicalBytes() []byte {
	var c cbuf
	c.PutI64(d.Size)
	c.PutI32(int(d.DescType))
	c.PutBool(d.Visible)
	c.PutI32(int(d.Usage))
	return c.Bytes()
}

// ViewDesc is the pool key for a texture view: the identity of
// the parent texture (assigned at devirtualization time, see
// gpuTexture.id) plus mip/layer range and view type.
type ViewDesc struct {
	TextureID          uint64
	Type               driver.ViewType
	Layer, Layers      int
	Level, Levels      int
}

func (d ViewDesc) canonicalBytes() []byte {
	var c cbuf
	c.PutU64(d.TextureID)
	c.PutI32(int(d.Type))
	c.PutI32(d.Layer)
	c.PutI32(d.Layers)
	c.PutI32(d.Level)
	c.PutI32(d.Levels)
	return c.Bytes()
}

// RenderPassDesc is the pool key for a render pass: attachment
// formats and load/store actions, keyed independently of any
// concrete framebuffer.
type RenderPassDesc struct {
	Color      [maxColorAttachments]driver.Attachment
	ColorCount int
	HasDepth   bool
	Depth      driver.Attachment
}

func (d RenderPassDesc) canonicalBytes() []byte {
	var c cbuf
	c.PutI32(d.ColorCount)
	for i := 0; i < d.ColorCount; i++ {
		putAttachment(&c, d.Color[i])
	}
	c.PutBool(d.HasDepth)
	if d.HasDepth {
		putAttachment(&c, d.Depth)
	}
	return c.Bytes()
}

func putAttachment(c *cbuf, a driver.Attachment) {
	c.PutI32(int(a.Format))
	c.PutI32(a.Samples)
	c.PutI32(int(a.Load[0]))
	c.PutI32(int(a.Load[1]))
	c.PutI32(int(a.Store[0]))
	c.PutI32(int(a.Store[1]))
}

// FramebufferDesc is the pool key for a framebuffer: the
// owning render pass's identity plus the concrete view
// identities bound to it.
type FramebufferDesc struct {
	RenderPassID        uint64
	Views               [maxColorAttachments + 1]uint64
	ViewCount           int
	Width, Height, Layers int
}

func (d FramebufferDesc) canonicalBytes() []byte {
	var c cbuf
	c.PutU64(d.RenderPassID)
	c.PutI32(d.ViewCount)
	for i := 0; i < d.ViewCount; i++ {
		c.PutU64(d.Views[i])
	}
	c.PutI32(d.Width)
	c.PutI32(d.Height)
	c.PutI32(d.Layers)
	return c.Bytes()
}

// putVertexLayout canonicalizes a vertex input layout for
// inclusion in a PSOKey.
func putVertexLayout(c *cbuf, in []driver.VertexIn) {
	c.PutI32(len(in))
	for _, v := range in {
		c.PutI32(int(v.Format))
		c.PutI32(v.Stride)
		c.PutI32(v.Nr)
		c.PutStr(v.Name)
	}
}

func putBlendState(c *cbuf, bs driver.BlendState) {
	c.PutBool(bs.IndependentBlend)
	c.PutI32(len(bs.Color))
	for _, cb := range bs.Color {
		c.PutBool(cb.Blend)
		c.PutI32(int(cb.WriteMask))
		c.PutI32(int(cb.Op[0]))
		c.PutI32(int(cb.Op[1]))
		c.PutI32(int(cb.SrcFac[0]))
		c.PutI32(int(cb.SrcFac[1]))
		c.PutI32(int(cb.DstFac[0]))
		c.PutI32(int(cb.DstFac[1]))
	}
}

func putDSState(c *cbuf, ds driver.DSState) {
	c.PutBool(ds.DepthTest)
	c.PutBool(ds.DepthWrite)
	c.PutI32(int(ds.DepthCmp))
	c.PutBool(ds.StencilTest)
	putStencilT(c, ds.Front)
	putStencilT(c, ds.Back)
}

func putStencilT(c *cbuf, s driver.StencilT) {
	c.PutI32(int(s.DSFail[0]))
	c.PutI32(int(s.DSFail[1]))
	c.PutI32(int(s.Pass))
	c.PutU32(s.ReadMask)
	c.PutU32(s.WriteMask)
	c.PutI32(int(s.Cmp))
}

func putRasterState(c *cbuf, r driver.RasterState) {
	c.PutBool(r.Clockwise)
	c.PutI32(int(r.Cull))
	c.PutI32(int(r.Fill))
	c.PutBool(r.DepthBias)
	c.PutF32(r.BiasValue)
	c.PutF32(r.BiasSlope)
	c.PutF32(r.BiasClamp)
}

// PSOKey is the pool key for a graphics pipeline. When the
// context reports DynamicStateTier1, Topology/Cull/FrontFace
// and the depth test/write/compare fields are zeroed before
// hashing (see zeroDynamicState), broadening pipeline reuse
// exactly as §4.2 specifies.
type PSOKey struct {
	VertCodeID, FragCodeID uint64
	VertFunc, FragFunc     string
	Vertex                 []driver.VertexIn
	Topology               driver.Topology
	Raster                 driver.RasterState
	Samples                int
	DS                     driver.DSState
	Blend                  driver.BlendState
	RenderPassID           uint64
	Subpass                int
	RTCount                int
	DescTableID            uint64
}

// zeroDynamicState clears the PSOKey fields that are set
// dynamically on the command buffer instead of baked into the
// pipeline, when the device reports DynamicStateTier1.
func (k PSOKey) zeroDynamicState() PSOKey {
	k.Topology = 0
	k.Raster.Cull = 0
	k.Raster.Clockwise = false
	k.DS.DepthTest = false
	k.DS.DepthWrite = false
	k.DS.DepthCmp = 0
	return k
}

func (k PSOKey) canonicalBytes() []byte {
	var c cbuf
	c.PutU64(k.VertCodeID)
	c.PutU64(k.FragCodeID)
	c.PutStr(k.VertFunc)
	c.PutStr(k.FragFunc)
	putVertexLayout(&c, k.Vertex)
	c.PutI32(int(k.Topology))
	putRasterState(&c, k.Raster)
	c.PutI32(k.Samples)
	putDSState(&c, k.DS)
	putBlendState(&c, k.Blend)
	c.PutU64(k.RenderPassID)
	c.PutI32(k.Subpass)
	c.PutI32(k.RTCount)
	c.PutU64(k.DescTableID)
	return c.Bytes()
}

// CPSOKey is the pool key for a compute pipeline.
type CPSOKey struct {
	CodeID      uint64
	Func        string
	DescTableID uint64
}

func (k CPSOKey) canonicalBytes() []byte {
	var c cbuf
	c.PutU64(k.CodeID)
	c.PutStr(k.Func)
	c.PutU64(k.DescTableID)
	return c.Bytes()
}

// DescSetDesc is the pool key for a descriptor heap: the
// shape (not contents) of the descriptors it must hold. Two
// shaders with identical root-signature tables share the same
// heap shape and so may reuse pooled heaps; contents are
// always rewritten by the encoder before a cache-missed bind.
type DescSetDesc struct {
	Descriptors []driver.Descriptor
}

func (d DescSetDesc) canonicalBytes() []byte {
	var c cbuf
	c.PutI32(len(d.Descriptors))
	for _, desc := range d.Descriptors {
		c.PutI32(int(desc.Type))
		c.PutI32(int(desc.Stages))
		c.PutI32(desc.Nr)
		c.PutI32(desc.Len)
	}
	return c.Bytes()
}
