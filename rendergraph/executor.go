// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// Execute devirtualizes transient resources, places barriers,
// dispatches every surviving pass and returns a command buffer
// ready for GPU.Commit (§4.5). fc's pools and bookkeeping are
// reused across frames; its own NewFrame must be called once
// per frame before Execute.
func Execute(cg *CompiledGraph, fc *FrameContext) (cmd driver.CmdBuffer, err error) {
	defer recoverPrecond(&err)

	g := cg.g
	cmd = fc.cmd
	if err := cmd.Begin(); err != nil {
		return nil, err
	}

	for _, cp := range cg.Passes {
		p := &g.passes[cp.PassIndex]

		for _, r := range cp.Devirtualize {
			if err := devirtualize(g, fc, r); err != nil {
				return nil, err
			}
		}

		planPassBarriers(g, p, cmd)

		switch p.typ {
		case passRender:
			if err := dispatchRender(g, fc, cmd, p); err != nil {
				return nil, err
			}
		case passCompute:
			dispatchCompute(g, fc, cmd, p)
		case passUploadTexture:
			if err := dispatchUploadTexture(g, cmd, p); err != nil {
				return nil, err
			}
		case passUploadBuffer:
			if err := dispatchUploadBuffer(g, cmd, p); err != nil {
				return nil, err
			}
		case passHoldOn, passPresent:
			// No command recording (§4.5 step 3).
		}

		for _, r := range cp.Destroy {
			destroyResource(g, fc, r)
		}
	}

	if err := cmd.End(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func devirtualize(g *Graph, fc *FrameContext, r resRef) error {
	if r.isBuffer {
		bn := &g.buffers[r.buf]
		if bn.manage == imported {
			return nil
		}
		d := BufferDesc{Size: bn.size, DescType: bn.descType, Visible: bn.memUsage.visible(), Usage: bufferUsage(bn.descType, bn.memUsage)}
		b, err := fc.bufPool.Get(d)
		if err != nil {
			return err
		}
		bn.devirt = b
		return nil
	}
	tn := &g.textures[r.tex]
	if tn.manage != managed {
		return nil
	}
	d := TextureDesc{Width: tn.width, Height: tn.height, Depth: tn.depth, MipLevels: tn.mipLevels, Layers: tn.arraySize, Format: tn.format, Samples: 1, Usage: textureUsage(g, r.tex)}
	t, err := fc.texPool.Get(d)
	if err != nil {
		return err
	}
	tn.devirt = t
	fc.texByID[t.id] = t
	tn.curStates = nil
	tn.statesConsistent = false
	return nil
}

func destroyResource(g *Graph, fc *FrameContext, r resRef) {
	if r.isBuffer {
		bn := &g.buffers[r.buf]
		if bn.manage != managed || bn.devirt == nil {
			return
		}
		d := BufferDesc{Size: bn.size, DescType: bn.descType, Visible: bn.memUsage.visible(), Usage: bufferUsage(bn.descType, bn.memUsage)}
		fc.bufPool.Release(d, bn.devirt)
		bn.devirt = nil
		return
	}
	tn := &g.textures[r.tex]
	if tn.manage != managed || tn.devirt == nil {
		return
	}
	d := TextureDesc{Width: tn.width, Height: tn.height, Depth: tn.depth, MipLevels: tn.mipLevels, Layers: tn.arraySize, Format: tn.format, Samples: 1, Usage: textureUsage(g, r.tex)}
	fc.texPool.Release(d, tn.devirt)
	tn.devirt = nil
}

// textureUsage unions the driver.Usage flags implied by every
// edge recorded against root or any of its SubResource nodes,
// across the whole graph: a managed texture's pool key must
// reflect every way it will be used this frame, not just the
// usage of the pass that happens to devirtualize it first.
func textureUsage(g *Graph, root TextureHandle) driver.Usage {
	root = g.rootTexture(root)
	var u driver.Usage
	apply := func(st State) {
		switch st {
		case RenderTarget, DepthWrite:
			u |= driver.URenderTarget
		case ShaderResource:
			u |= driver.UShaderSample
		case UnorderedAccess:
			u |= driver.UShaderRead | driver.UShaderWrite
		}
	}
	edgeRoot := func(r resRef) TextureHandle {
		if r.isBuffer {
			return TextureHandleInvalid
		}
		return g.rootTexture(r.tex)
	}
	for _, p := range g.passes {
		for _, e := range p.reads {
			if !e.res.isBuffer && edgeRoot(e.res) == root {
				apply(e.usage)
			}
		}
		for _, e := range p.writes {
			if !e.res.isBuffer && edgeRoot(e.res) == root {
				apply(e.usage)
			}
		}
	}
	return u
}

// mipDim halves dim mip times, floored at 1 (§3: mip chains
// shrink by half per level, never below a single texel).
func mipDim(dim, mip int) int {
	d := dim >> mip
	if d < 1 {
		d = 1
	}
	return d
}

// attachmentDim returns the pixel dimensions tex's framebuffer
// attachment must use: the root's dimensions at tex's own mip
// level when tex is a SubResource, or the root's base dimensions
// otherwise.
func attachmentDim(g *Graph, tex TextureHandle) (width, height int) {
	tn := &g.textures[tex]
	root := g.rootTexture(tex)
	rn := &g.textures[root]
	mip := 0
	if tn.manage == subResource {
		mip = tn.mip
	}
	return mipDim(rn.width, mip), mipDim(rn.height, mip)
}

// attachmentView resolves the single-mip, single-layer view a
// framebuffer attachment needs: (mip, slice) for a SubResource
// node, or (0, 0) for a plain managed/imported root.
func attachmentView(g *Graph, fc *FrameContext, tex TextureHandle) *gpuView {
	tn := &g.textures[tex]
	root := g.rootTexture(tex)
	rn := &g.textures[root]
	var id uint64
	if rn.manage == imported {
		id = fc.importedTextureID(rn)
	} else {
		id = rn.devirt.id
	}
	mip, slice := 0, 0
	if tn.manage == subResource {
		mip, slice = tn.mip, tn.slice
	}
	d := ViewDesc{TextureID: id, Layer: slice, Layers: 1, Level: mip, Levels: 1, Type: driver.IView2D}
	v, err := fc.viewPool.Get(d)
	precond(err == nil, "attachment_view: view pool miss")
	fc.viewByID[v.id] = v
	return v
}

func dispatchRender(g *Graph, fc *FrameContext, cmd driver.CmdBuffer, p *passNode) error {
	var rd RenderPassDesc
	rd.ColorCount = len(p.color)
	for i, c := range p.color {
		tn := &g.textures[g.rootTexture(c.tex)]
		rd.Color[i] = driver.Attachment{Format: tn.format, Samples: 1, Load: [2]driver.LoadOp{c.load}, Store: [2]driver.StoreOp{c.store}}
	}
	if p.hasDepth {
		tn := &g.textures[g.rootTexture(p.depth.tex)]
		rd.HasDepth = true
		rd.Depth = driver.Attachment{Format: tn.format, Samples: 1, Load: [2]driver.LoadOp{p.depth.loadDepth, p.depth.loadStencil}, Store: [2]driver.StoreOp{p.depth.storeDepth, p.depth.storeStencil}}
	}
	rp, err := fc.rpPool.Get(rd)
	if err != nil {
		return err
	}
	fc.rpByID[rp.id] = rp

	var fd FramebufferDesc
	fd.RenderPassID = rp.id
	width, height := 0, 0
	for _, c := range p.color {
		v := attachmentView(g, fc, c.tex)
		fd.Views[fd.ViewCount] = v.id
		fd.ViewCount++
		width, height = attachmentDim(g, c.tex)
	}
	if p.hasDepth {
		v := attachmentView(g, fc, p.depth.tex)
		fd.Views[fd.ViewCount] = v.id
		fd.ViewCount++
		width, height = attachmentDim(g, p.depth.tex)
	}
	fd.Width, fd.Height, fd.Layers = width, height, 1

	fb, err := fc.fbPool.Get(fd)
	if err != nil {
		return err
	}

	clears := make([]driver.ClearValue, 0, fd.ViewCount)
	for _, c := range p.color {
		if c.load == driver.LClear {
			clears = append(clears, driver.ClearValue{Color: c.clear})
		} else {
			clears = append(clears, driver.ClearValue{})
		}
	}
	if p.hasDepth {
		if p.depth.loadDepth == driver.LClear || p.depth.loadStencil == driver.LClear {
			clears = append(clears, driver.ClearValue{Depth: p.depth.clearDepth, Stencil: p.depth.clearStencil})
		} else {
			clears = append(clears, driver.ClearValue{})
		}
	}

	cmd.BeginPass(rp.pass, fb.fb, clears)
	cmd.SetViewport([]driver.Viewport{{Width: float32(width), Height: float32(height), Zfar: 1}})
	cmd.SetScissor([]driver.Scissor{{Width: width, Height: height}})
	if p.renderFn != nil {
		enc := newRenderPassEncoder(fc, g, cmd, rp.id, 0, len(p.color), 1)
		p.renderFn(enc, p.renderData)
	}
	cmd.EndPass()
	return nil
}

func dispatchCompute(g *Graph, fc *FrameContext, cmd driver.CmdBuffer, p *passNode) {
	cmd.BeginWork(false)
	if p.computeFn != nil {
		enc := newComputePassEncoder(fc, g, cmd)
		p.computeFn(enc, p.computeData)
	}
	cmd.EndWork()
}

func dispatchUploadTexture(g *Graph, cmd driver.CmdBuffer, p *passNode) error {
	sb := &g.buffers[p.stagingBuf]
	precond(sb.devirt != nil, "upload_texture: staging buffer not devirtualized")
	precond(sb.devirt.Cap() >= int64(len(p.data))+p.offset, "upload_texture: staging buffer too small for requested copy")
	if len(p.data) > 0 {
		copy(sb.devirt.Bytes()[p.offset:], p.data)
	}
	if p.uploadFn != nil {
		p.uploadFn(&UploadEncoder{Bytes: sb.devirt.Bytes()[p.offset:]}, p.uploadData)
	}
	root := g.rootTexture(p.uploadTex)
	rn := &g.textures[root]
	img := rn.importedImg
	if rn.manage != imported {
		img = rn.devirt.img
	}
	mip, slice := p.uploadMip, p.uploadSlice
	w, h, d := mipDim(rn.width, mip), mipDim(rn.height, mip), mipDim(rn.depth, mip)
	cmd.BeginBlit(false)
	cmd.CopyBufToImg(&driver.BufImgCopy{
		Buf: sb.devirt, BufOff: p.offset,
		Stride: [2]int64{int64(w), int64(h)},
		Img:    img, Layer: slice, Level: mip,
		Size: driver.Dim3D{Width: w, Height: h, Depth: d},
	})
	cmd.EndBlit()
	return nil
}

func dispatchUploadBuffer(g *Graph, cmd driver.CmdBuffer, p *passNode) error {
	sb := &g.buffers[p.stagingBuf]
	db := &g.buffers[p.uploadBuf]
	precond(sb.devirt != nil, "upload_buffer: staging buffer not devirtualized")
	precond(sb.devirt.Cap() >= int64(len(p.data))+p.offset, "upload_buffer: staging buffer too small for requested copy")
	if len(p.data) > 0 {
		copy(sb.devirt.Bytes()[p.offset:], p.data)
	}
	if p.uploadFn != nil {
		p.uploadFn(&UploadEncoder{Bytes: sb.devirt.Bytes()[p.offset:]}, p.uploadData)
	}
	dst := db.devirt
	if db.manage == imported {
		dst = db.importedBuf
	}
	cmd.BeginBlit(false)
	cmd.CopyBuffer(&driver.BufferCopy{From: sb.devirt, FromOff: 0, To: dst, ToOff: 0, Size: db.size})
	cmd.EndBlit()
	return nil
}
