// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// maxColorAttachments is the maximum number of color
// attachments a single render pass may declare (§3).
const maxColorAttachments = 8

// State is the usage a pass requires of a resource at a given
// edge, driving both barrier placement (§4.5.1) and the edge
// taxonomy of §3.
type State int

// Resource usage states.
const (
	Undefined State = iota
	RenderTarget
	DepthWrite
	ShaderResource
	CopySource
	CopyDest
	VertexAndConstantBuffer
	IndexBuffer
	UnorderedAccess
	Present
)

// MemUsage is a buffer's memory residency, matching §3's
// {GPU-only, CPU-to-GPU, GPU-to-CPU, CPU-only} taxonomy.
type MemUsage int

const (
	MemGPUOnly MemUsage = iota
	MemCPUToGPU
	MemGPUToCPU
	MemCPUOnly
)

func (m MemUsage) visible() bool { return m != MemGPUOnly }

// manageType is a resource node's ownership/lifetime kind.
type manageType int

const (
	managed manageType = iota
	imported
	subResource
)

// textureNode is a virtual texture resource recorded by the
// builder. Index 0 of Graph.textures is the reserved sentinel
// (see TextureHandleInvalid).
type textureNode struct {
	manage     manageType
	width      int
	height     int
	depth      int
	mipLevels  int
	arraySize  int
	format     driver.PixelFmt
	holdOnLast bool

	// Imported.
	importedImg driver.Image

	// SubResource: parent is always a non-SubResource root,
	// walked at declaration time (§3: "parent chain is walked
	// until a non-SubResource root is reached").
	parent TextureHandle
	mip    int
	slice  int

	// Runtime state, populated by the executor.
	devirt           *gpuTexture
	curStates        []State // one per (mip + slice*mipLevels) subresource of the root
	statesConsistent bool
}

// bufferNode is a virtual buffer resource.
type bufferNode struct {
	manage     manageType
	size       int64
	descType   driver.DescType
	memUsage   MemUsage
	holdOnLast bool

	importedBuf driver.Buffer

	devirt   driver.Buffer
	curState State
}

// colorAttachment is one render-pass color attachment (§3).
type colorAttachment struct {
	tex   TextureHandle
	load  driver.LoadOp
	store driver.StoreOp
	clear [4]float32
}

// depthAttachment is a render-pass's single depth attachment.
type depthAttachment struct {
	tex          TextureHandle
	loadDepth    driver.LoadOp
	storeDepth   driver.StoreOp
	loadStencil  driver.LoadOp
	storeStencil driver.StoreOp
	clearDepth   float32
	clearStencil uint32
}

// passType is a pass node's kind (§3).
type passType int

const (
	passHoldOn passType = iota
	passRender
	passCompute
	passUploadTexture
	passUploadBuffer
	passPresent
)

// resRef identifies a resource referenced by an edge: either a
// texture or a buffer index into the owning Graph.
type resRef struct {
	isBuffer bool
	tex      TextureHandle
	buf      BufferHandle
}

// edgeRef is one recorded dependency between a pass and a
// resource, carrying the usage state the edge requires.
type edgeRef struct {
	res   resRef
	write bool
	usage State
}

// passNode is a recorded unit of work.
type passNode struct {
	name  string
	typ   passType
	reads []edgeRef
	writes []edgeRef

	// Render.
	color    []colorAttachment
	hasDepth bool
	depth    depthAttachment
	renderFn func(*RenderPassEncoder, any)
	renderData any

	// Compute.
	computeFn   func(*RenderPassEncoder, any)
	computeData any

	// UploadTexture / UploadBuffer.
	stagingBuf  BufferHandle
	uploadTex   TextureHandle
	uploadMip   int
	uploadSlice int
	uploadBuf   BufferHandle
	data        []byte
	offset      int64
	uploadFn    func(*UploadEncoder, any)
	uploadData  any

	// Present.
	presentTex TextureHandle
}

// Graph is a single frame's recorded render graph: passes and
// virtual resources, arena-style (reset by discarding the
// *Graph and calling New again; there is no in-place Reset
// because Go's GC already reclaims the backing slices).
type Graph struct {
	passes   []passNode
	textures []textureNode
	buffers  []bufferNode

	// BlitShader/BlitSampler back AddGenerateMipmap's
	// synthesized passes. The core does not compile SPIR-V
	// (shader compilation is a non-goal), so the caller must
	// set these once, outside any frame, before recording a
	// graph that calls AddGenerateMipmap.
	BlitShader  *Shader
	BlitSampler driver.Sampler
}

// New creates an empty Graph with the sentinel resource at
// index 0 of both the texture and buffer vectors.
func New() *Graph {
	g := &Graph{
		passes:   make([]passNode, 0, 16),
		textures: make([]textureNode, 1, 16),
		buffers:  make([]bufferNode, 1, 16),
	}
	return g
}

func (g *Graph) addPass(p passNode) int {
	g.passes = append(g.passes, p)
	return len(g.passes) - 1
}

// DeclareTexture records a new Managed texture resource and
// returns a handle to it.
func (g *Graph) DeclareTexture(width, height, depth, mipLevels, arraySize int, format driver.PixelFmt) TextureHandle {
	precond(width > 0 && height > 0 && depth > 0, "texture dimension must be positive")
	precond(mipLevels > 0 && arraySize > 0, "mipLevels/arraySize must be positive")
	g.textures = append(g.textures, textureNode{
		manage:    managed,
		width:     width,
		height:    height,
		depth:     depth,
		mipLevels: mipLevels,
		arraySize: arraySize,
		format:    format,
	})
	return TextureHandle(len(g.textures) - 1)
}

// ImportTexture records an Imported texture wrapping a
// caller-owned driver.Image.
func (g *Graph) ImportTexture(img driver.Image, width, height, depth, mipLevels, arraySize int, format driver.PixelFmt) TextureHandle {
	precond(img != nil, "import_texture requires a non-nil image")
	g.textures = append(g.textures, textureNode{
		manage:      imported,
		importedImg: img,
		width:       width,
		height:      height,
		depth:       depth,
		mipLevels:   mipLevels,
		arraySize:   arraySize,
		format:      format,
	})
	return TextureHandle(len(g.textures) - 1)
}

// ImportBackbuffer is ImportTexture specialized for a
// single-mip, single-layer swapchain image.
func (g *Graph) ImportBackbuffer(img driver.Image, width, height int, format driver.PixelFmt) TextureHandle {
	return g.ImportTexture(img, width, height, 1, 1, 1, format)
}

// DeclareTextureSubresource creates a SubResource node bound
// to a specific (mip, slice) of parent, walking parent's own
// chain to its root first (§3/§4.3).
func (g *Graph) DeclareTextureSubresource(parent TextureHandle, mip, slice int) TextureHandle {
	precond(parent.Valid() && int(parent) < len(g.textures), "declare_texture_subresource: invalid parent handle")
	root := g.rootTexture(parent)
	rn := &g.textures[root]
	precond(mip >= 0 && mip < rn.mipLevels, "declare_texture_subresource: mip out of range")
	precond(slice >= 0 && slice < rn.arraySize, "declare_texture_subresource: slice out of range")
	g.textures = append(g.textures, textureNode{
		manage: subResource,
		parent: root,
		mip:    mip,
		slice:  slice,
	})
	return TextureHandle(len(g.textures) - 1)
}

// rootTexture walks a SubResource chain until a non-SubResource
// root is reached (§3 invariant).
func (g *Graph) rootTexture(h TextureHandle) TextureHandle {
	for g.textures[h].manage == subResource {
		h = g.textures[h].parent
	}
	return h
}

// DeclareBuffer records a new Managed buffer, rounding size up
// to the next power of two.
func (g *Graph) DeclareBuffer(size int64, descType driver.DescType, mem MemUsage) BufferHandle {
	precond(size > 0, "buffer size must be positive")
	g.buffers = append(g.buffers, bufferNode{
		manage:   managed,
		size:     nextPow2(size),
		descType: descType,
		memUsage: mem,
	})
	return BufferHandle(len(g.buffers) - 1)
}

// ImportBuffer records an Imported buffer wrapping a
// caller-owned driver.Buffer.
func (g *Graph) ImportBuffer(buf driver.Buffer, descType driver.DescType, mem MemUsage) BufferHandle {
	precond(buf != nil, "import_buffer requires a non-nil buffer")
	g.buffers = append(g.buffers, bufferNode{
		manage:      imported,
		importedBuf: buf,
		size:        buf.Cap(),
		descType:    descType,
		memUsage:    mem,
	})
	return BufferHandle(len(g.buffers) - 1)
}

// DeclareUniformBufferQuick declares a power-of-two-sized,
// GPU-only uniform buffer and synthesizes an upload pass that
// copies data into it (§4.3).
func (g *Graph) DeclareUniformBufferQuick(size int64, data []byte) BufferHandle {
	precond(size > 0, "declare_uniform_buffer_quick: size must be positive")
	h := g.DeclareBuffer(size, driver.DConstant, MemGPUOnly)
	g.AddUploadBufferPass("uniform_buffer_quick", h, data, 0)
	return h
}

// nextPow2 rounds n up to the next power of two (n=1 stays 1,
// matching the boundary case in §8 property 11).
func nextPow2(n int64) int64 {
	if n <= 1 {
		return 1
	}
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// AddHoldPass adds a persistent structural pass with no
// command recording (§4.5 step 3: "HoldOn/Present: no command
// recording"). The pass records no reads or writes; because it
// always survives Compile, it is the last surviving pass to
// which holdOnLast resources are extended.
func (g *Graph) AddHoldPass(name string) int {
	return g.addPass(passNode{name: name, typ: passHoldOn})
}

// Present adds a persistent Present pass reading tex with
// usage Present (§3).
func (g *Graph) Present(tex TextureHandle) int {
	precond(tex.Valid(), "present: invalid texture handle")
	idx := g.addPass(passNode{name: "present", typ: passPresent, presentTex: tex})
	g.passes[idx].reads = append(g.passes[idx].reads, edgeRef{res: resRef{tex: tex}, usage: Present})
	return idx
}

// RenderPassBuilder records the attachments, reads/writes and
// executable of a single render pass.
type RenderPassBuilder struct {
	g   *Graph
	idx int
}

// AddRenderPass begins recording a new render pass.
func (g *Graph) AddRenderPass(name string) *RenderPassBuilder {
	idx := g.addPass(passNode{name: name, typ: passRender})
	return &RenderPassBuilder{g: g, idx: idx}
}

func (b *RenderPassBuilder) pass() *passNode { return &b.g.passes[b.idx] }

// AddColorAttachment adds a color attachment, up to
// maxColorAttachments (§3/§8 property 10).
func (b *RenderPassBuilder) AddColorAttachment(tex TextureHandle, load driver.LoadOp, store driver.StoreOp, clear [4]float32) *RenderPassBuilder {
	p := b.pass()
	precond(len(p.color) < maxColorAttachments, "add_color_attachment: exceeds maxColorAttachments")
	precond(tex.Valid(), "add_color_attachment: invalid texture handle")
	p.color = append(p.color, colorAttachment{tex: tex, load: load, store: store, clear: clear})
	p.writes = append(p.writes, edgeRef{res: resRef{tex: tex}, write: true, usage: RenderTarget})
	return b
}

// AddDepthAttachment adds the render pass's single depth
// attachment (§3: a read with Undefined plus a write with
// DepthWrite).
func (b *RenderPassBuilder) AddDepthAttachment(tex TextureHandle, loadDepth, loadStencil driver.LoadOp, storeDepth, storeStencil driver.StoreOp, clearDepth float32, clearStencil uint32) *RenderPassBuilder {
	p := b.pass()
	precond(!p.hasDepth, "add_depth_attachment: only one depth attachment is permitted")
	precond(tex.Valid(), "add_depth_attachment: invalid texture handle")
	p.hasDepth = true
	p.depth = depthAttachment{
		tex: tex, loadDepth: loadDepth, storeDepth: storeDepth,
		loadStencil: loadStencil, storeStencil: storeStencil,
		clearDepth: clearDepth, clearStencil: clearStencil,
	}
	p.reads = append(p.reads, edgeRef{res: resRef{tex: tex}, usage: Undefined})
	p.writes = append(p.writes, edgeRef{res: resRef{tex: tex}, write: true, usage: DepthWrite})
	return b
}

// Sample records a read dependency on tex with usage
// ShaderResource.
func (b *RenderPassBuilder) Sample(tex TextureHandle) *RenderPassBuilder {
	precond(tex.Valid(), "sample: invalid texture handle")
	p := b.pass()
	p.reads = append(p.reads, edgeRef{res: resRef{tex: tex}, usage: ShaderResource})
	return b
}

// UseBuffer records a read dependency on buf, inferring the
// usage state from the buffer's declared descriptor type.
func (b *RenderPassBuilder) UseBuffer(buf BufferHandle) *RenderPassBuilder {
	precond(buf.Valid(), "use_buffer: invalid buffer handle")
	dt := b.g.buffers[buf].descType
	var st State
	switch dt {
	case driver.DConstant:
		st = VertexAndConstantBuffer
	case driver.DBuffer:
		st = UnorderedAccess
	default:
		st = ShaderResource
	}
	return b.UseBufferAs(buf, st)
}

// UseBufferAs records a read dependency on buf with an
// explicit usage state.
func (b *RenderPassBuilder) UseBufferAs(buf BufferHandle, state State) *RenderPassBuilder {
	precond(buf.Valid(), "use_buffer_as: invalid buffer handle")
	p := b.pass()
	p.reads = append(p.reads, edgeRef{res: resRef{isBuffer: true, buf: buf}, usage: state})
	return b
}

// SetExecutable sets the callback invoked with a fresh
// RenderPassEncoder when the pass executes. data is an
// arbitrary payload the callback receives verbatim — the
// typed-any replacement for the original's passdata arena
// pointer (§3 expansion).
func (b *RenderPassBuilder) SetExecutable(fn func(*RenderPassEncoder, any), data any) *RenderPassBuilder {
	p := b.pass()
	p.renderFn = fn
	p.renderData = data
	return b
}

// ComputePassBuilder records the reads/writes and executable
// of a single compute pass.
type ComputePassBuilder struct {
	g   *Graph
	idx int
}

// AddComputePass begins recording a new compute pass.
func (g *Graph) AddComputePass(name string) *ComputePassBuilder {
	idx := g.addPass(passNode{name: name, typ: passCompute})
	return &ComputePassBuilder{g: g, idx: idx}
}

func (b *ComputePassBuilder) pass() *passNode { return &b.g.passes[b.idx] }

// Sample records a texture read dependency (ShaderResource).
func (b *ComputePassBuilder) Sample(tex TextureHandle) *ComputePassBuilder {
	precond(tex.Valid(), "sample: invalid texture handle")
	p := b.pass()
	p.reads = append(p.reads, edgeRef{res: resRef{tex: tex}, usage: ShaderResource})
	return b
}

// Write records a texture write dependency (UnorderedAccess).
func (b *ComputePassBuilder) Write(tex TextureHandle) *ComputePassBuilder {
	precond(tex.Valid(), "write: invalid texture handle")
	p := b.pass()
	p.writes = append(p.writes, edgeRef{res: resRef{tex: tex}, write: true, usage: UnorderedAccess})
	return b
}

// UseBufferAs records a buffer read/write dependency with an
// explicit usage state.
func (b *ComputePassBuilder) UseBufferAs(buf BufferHandle, state State, write bool) *ComputePassBuilder {
	precond(buf.Valid(), "use_buffer_as: invalid buffer handle")
	p := b.pass()
	e := edgeRef{res: resRef{isBuffer: true, buf: buf}, usage: state, write: write}
	if write {
		p.writes = append(p.writes, e)
	} else {
		p.reads = append(p.reads, e)
	}
	return b
}

// SetExecutable sets the compute pass's callback.
func (b *ComputePassBuilder) SetExecutable(fn func(*RenderPassEncoder, any), data any) *ComputePassBuilder {
	p := b.pass()
	p.computeFn = fn
	p.computeData = data
	return b
}

// AddUploadTexturePass adds an upload pass copying data into
// dst at (mip, slice), staging through an auto-declared
// CPU-only buffer (§3/§4.5).
func (g *Graph) AddUploadTexturePass(name string, dst TextureHandle, mip, slice int, size int64, data []byte) int {
	return g.addUploadTexturePassEx(name, dst, mip, slice, size, data, nil, nil)
}

// AddUploadTexturePassEx is AddUploadTexturePass with an
// additional callback invoked with an UploadEncoder exposing
// the staging buffer's mapped range before the transfer is
// enqueued.
func (g *Graph) AddUploadTexturePassEx(name string, dst TextureHandle, mip, slice int, size int64, data []byte, fn func(*UploadEncoder, any), fnData any) int {
	return g.addUploadTexturePassEx(name, dst, mip, slice, size, data, fn, fnData)
}

func (g *Graph) addUploadTexturePassEx(name string, dst TextureHandle, mip, slice int, size int64, data []byte, fn func(*UploadEncoder, any), fnData any) int {
	precond(dst.Valid(), "add_uploadtexturepass: invalid destination handle")
	precond(size > 0, "add_uploadtexturepass: size must be positive")
	staging := g.DeclareBuffer(size, driver.DBuffer, MemCPUOnly)
	idx := g.addPass(passNode{
		name: name, typ: passUploadTexture,
		stagingBuf: staging, uploadTex: dst, uploadMip: mip, uploadSlice: slice,
		data: data, uploadFn: fn, uploadData: fnData,
	})
	p := &g.passes[idx]
	p.reads = append(p.reads, edgeRef{res: resRef{isBuffer: true, buf: staging}, usage: CopySource})
	p.writes = append(p.writes, edgeRef{res: resRef{tex: dst}, write: true, usage: CopyDest})
	return idx
}

// AddUploadBufferPass adds an upload pass copying data into
// dst, staging through an auto-declared CPU-only buffer.
func (g *Graph) AddUploadBufferPass(name string, dst BufferHandle, data []byte, offset int64) int {
	return g.addUploadBufferPassEx(name, dst, data, offset, nil, nil)
}

// AddUploadBufferPassEx is AddUploadBufferPass with an
// additional pre-copy callback.
func (g *Graph) AddUploadBufferPassEx(name string, dst BufferHandle, data []byte, offset int64, fn func(*UploadEncoder, any), fnData any) int {
	return g.addUploadBufferPassEx(name, dst, data, offset, fn, fnData)
}

func (g *Graph) addUploadBufferPassEx(name string, dst BufferHandle, data []byte, offset int64, fn func(*UploadEncoder, any), fnData any) int {
	precond(dst.Valid(), "add_uploadbufferpass: invalid destination handle")
	precond(len(data) > 0, "add_uploadbufferpass: data must be non-empty")
	// The transfer always copies the destination's full size
	// from staging offset 0 (§4.5), so the staging buffer must
	// be sized to cover the whole destination, not just data.
	dstSize := g.buffers[dst].size
	precond(offset+int64(len(data)) <= dstSize, "add_uploadbufferpass: offset+len(data) exceeds destination size")
	staging := g.DeclareBuffer(dstSize, driver.DBuffer, MemCPUOnly)
	idx := g.addPass(passNode{
		name: name, typ: passUploadBuffer,
		stagingBuf: staging, uploadBuf: dst, offset: offset,
		data: data, uploadFn: fn, uploadData: fnData,
	})
	p := &g.passes[idx]
	p.reads = append(p.reads, edgeRef{res: resRef{isBuffer: true, buf: staging}, usage: CopySource})
	p.writes = append(p.writes, edgeRef{res: resRef{isBuffer: true, buf: dst}, write: true, usage: CopyDest})
	return idx
}

// AddGenerateMipmap synthesizes a chain of render passes that
// blit each mip from the one before it, reducing arbitrary mip
// generation to passes the compiler/executor already handle
// (§4.3). Graph.BlitShader and Graph.BlitSampler must be set
// before calling this.
func (g *Graph) AddGenerateMipmap(tex TextureHandle) {
	precond(tex.Valid(), "add_generate_mipmap: invalid texture handle")
	precond(g.BlitShader != nil, "add_generate_mipmap: Graph.BlitShader not set")
	root := g.rootTexture(tex)
	mips := g.textures[root].mipLevels
	for i := 1; i < mips; i++ {
		src := g.DeclareTextureSubresource(root, i-1, 0)
		dst := g.DeclareTextureSubresource(root, i, 0)
		b := g.AddRenderPass("generate_mipmap")
		b.AddColorAttachment(dst, driver.LDontCare, driver.SStore, [4]float32{})
		b.Sample(src)
		shader, sampler := g.BlitShader, g.BlitSampler
		b.SetExecutable(func(enc *RenderPassEncoder, _ any) {
			enc.SetGlobalTexture(0, 0, src)
			enc.SetGlobalSampler(0, 1, sampler)
			enc.DrawProcedure(shader, driver.TTriangle, 3)
		}, nil)
	}
}
