// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// defaultTexSize is the width/height of the default texture
// substituted for an unresolved global_texture binding (§4.6).
const defaultTexSize = 4

// FrameContext owns everything a render graph needs to execute
// that is meant to outlive a single frame: the object pools
// (§5: "shared across frames"), the command buffer it records
// into, and the id-resolution bookkeeping the pools' create
// closures need. One FrameContext exists per swapchain image;
// the caller calls NewFrame before recording/executing each
// frame that reuses it.
//
// Unlike the original design's two-tier "engine-wide pool plus
// per-frame upstream sub-pool", every pool here is owned
// directly by the FrameContext and simply persists across that
// context's own repeated frames — §5's "shared across frames"
// requirement is satisfied because the same FrameContext (and
// therefore the same pools) is reused call after call; the
// generic Pool.upstream capability remains available but unused.
type FrameContext struct {
	gpu driver.GPU

	cmd driver.CmdBuffer

	texPool  *Pool[TextureDesc, *gpuTexture]
	bufPool  *Pool[BufferDesc, driver.Buffer]
	viewPool *Pool[ViewDesc, *gpuView]
	rpPool   *Pool[RenderPassDesc, *gpuRenderPass]
	fbPool   *Pool[FramebufferDesc, *gpuFramebuf]
	gfxPool  *Pool[PSOKey, *gpuPipeline]
	compPool *Pool[CPSOKey, *gpuPipeline]
	descPool *Pool[DescSetDesc, *gpuDescHeap]

	// imgIDs assigns a stable id to every driver.Image the
	// texture pool or the caller (via ImportTexture) ever
	// hands back, so descriptors can reference images by id
	// instead of by interface value (see resources.go).
	imgIDs map[driver.Image]uint64

	// texByID is cleared by every NewFrame call (Execute does
	// not clear it): it holds every texture this frame's passes
	// may reference,
	// populated as each is devirtualized or as imported textures
	// are registered. Bounding it to one frame's working set
	// keeps it from growing without bound across a long-running
	// application's lifetime, unlike rpByID/viewByID/tableByID
	// below, whose key space (distinct render-pass/view/table
	// shapes) is small and effectively fixed by the asset set.
	texByID map[uint64]*gpuTexture

	rpByID    map[uint64]*gpuRenderPass
	viewByID  map[uint64]*gpuView
	tableByID map[uint64]*gpuDescTable

	// codeByID resolves a ShaderCode by the id assigned to it
	// when the caller registered the shader (see RegisterShader).
	codeByID map[uint64]driver.ShaderCode

	// descTables caches one gpuDescTable per distinct ordered
	// combination of descriptor heaps, keyed by the heaps' ids;
	// entries are kept for the FrameContext's lifetime rather
	// than pooled by frame age.
	descTables map[string]*gpuDescTable

	defaultTex  *gpuTexture
	defaultView *gpuView
	defaultSplr driver.Sampler

	// constRing is a small persistently-mapped, host-visible
	// buffer PushConstants copies data into (the driver
	// abstraction has no native push-constant command, so this
	// core adapts the feature onto a per-frame ring of constant-
	// buffer ranges instead). constCursor resets every NewFrame.
	constRing   driver.Buffer
	constCursor int64

	// globals is the per-frame stack described in §4.6: a
	// set_global_* call pushes an entry; resolution scans from
	// the end of the slice towards the start and uses the first
	// match, giving scoped-override semantics for free.
	globals []globalBinding

	// checkedOutDescs is every descriptor heap bindShader pulled
	// out of descPool this frame (§3 Ownership: "descriptor sets
	// allocated during a frame are returned to their pool on
	// frame begin"). NewFrame releases each one back to descPool
	// before sweeping it for age-based eviction, since descPool
	// itself has no way to know a heap is no longer in use until
	// told.
	checkedOutDescs []checkedOutDesc

	profiler *Profiler

	frame uint64
}

// constRingSize is the byte capacity of the push-constant ring
// buffer. SetBuffer requires 256-byte aligned ranges, so every
// allocation out of the ring rounds up to that granularity.
const constRingSize = 1 << 20
const constAlignment = 256

// checkedOutDesc records one descPool.Get the encoder made this
// frame, so NewFrame can release it back.
type checkedOutDesc struct {
	desc DescSetDesc
	heap *gpuDescHeap
}

// checkoutDescHeap gets a descriptor heap from descPool and
// records the checkout so NewFrame can release it at the start
// of the next frame.
func (fc *FrameContext) checkoutDescHeap(d DescSetDesc) (*gpuDescHeap, error) {
	h, err := fc.descPool.Get(d)
	if err != nil {
		return nil, err
	}
	fc.checkedOutDescs = append(fc.checkedOutDescs, checkedOutDesc{desc: d, heap: h})
	return h, nil
}

// NewFrameContext creates a FrameContext backed by gpu. It
// creates the 4×4 RGBA8 default texture eagerly so the encoder
// never has to special-case its absence; the texture's contents
// are not initialized (nothing is uploaded into it).
func NewFrameContext(gpu driver.GPU) (fc *FrameContext, err error) {
	defer recoverPrecond(&err)

	fc = &FrameContext{
		gpu:        gpu,
		imgIDs:     make(map[driver.Image]uint64),
		texByID:    make(map[uint64]*gpuTexture),
		rpByID:     make(map[uint64]*gpuRenderPass),
		viewByID:   make(map[uint64]*gpuView),
		tableByID:  make(map[uint64]*gpuDescTable),
		codeByID:   make(map[uint64]driver.ShaderCode),
		descTables: make(map[string]*gpuDescTable),
	}
	fc.texPool = NewTexturePool(gpu, fc.assignImageID)
	fc.bufPool = NewBufferPool(gpu)
	fc.viewPool = NewViewPool(fc.lookupTexture)
	fc.rpPool = NewRenderPassPool(gpu)
	fc.fbPool = NewFramebufferPool(fc.lookupRenderPass, fc.lookupView)
	fc.gfxPool = NewGraphicsPipelinePool(gpu, fc.lookupCode, fc.lookupRenderPass, fc.lookupDescTable)
	fc.compPool = NewComputePipelinePool(gpu, fc.lookupCode, fc.lookupDescTable)
	fc.descPool = NewDescriptorSetPool(gpu)

	fc.cmd, err = gpu.NewCmdBuffer()
	if err != nil {
		return nil, err
	}
	fc.profiler, err = NewProfiler(gpu)
	if err != nil {
		return nil, err
	}

	img, err := gpu.NewImage(driver.RGBA8un, driver.Dim3D{Width: defaultTexSize, Height: defaultTexSize, Depth: 1}, 1, 1, 1, driver.UShaderSample)
	if err != nil {
		return nil, err
	}
	fc.defaultTex = &gpuTexture{
		id: fc.assignImageID(img), img: img, format: driver.RGBA8un,
		width: defaultTexSize, height: defaultTexSize, depth: 1, mipLevels: 1, arraySize: 1,
	}
	view, err := img.NewView(driver.IView2D, 0, 1, 0, 1)
	if err != nil {
		return nil, err
	}
	fc.defaultView = &gpuView{id: newResourceID(), view: view}
	fc.defaultSplr, err = gpu.NewSampler(&driver.Sampling{Min: driver.FNearest, Mag: driver.FNearest, Mipmap: driver.FNoMipmap})
	if err != nil {
		return nil, err
	}
	fc.constRing, err = gpu.NewBuffer(constRingSize, true, driver.UShaderConst)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// allocConst copies data into the next free range of the push-
// constant ring, wrapping to the start when it would overrun
// (§4.6 PushConstants; the caller is expected to size its per-
// frame constant traffic well under constRingSize).
func (fc *FrameContext) allocConst(data []byte) (buf driver.Buffer, off int64) {
	size := (int64(len(data)) + constAlignment - 1) / constAlignment * constAlignment
	precond(size <= constRingSize, "push_constants: data exceeds the constant ring capacity")
	if fc.constCursor+size > constRingSize {
		fc.constCursor = 0
	}
	off = fc.constCursor
	copy(fc.constRing.Bytes()[off:], data)
	fc.constCursor += size
	return fc.constRing, off
}

func (fc *FrameContext) assignImageID(img driver.Image) uint64 {
	if id, ok := fc.imgIDs[img]; ok {
		return id
	}
	id := newResourceID()
	fc.imgIDs[img] = id
	return id
}

// importedTextureID assigns a stable id to an Imported texture
// node and ensures fc.texByID carries the *gpuTexture entry the
// view/framebuffer pools' create closures look up by id — an
// Imported root never goes through the texture pool, so nothing
// else populates that entry for it.
func (fc *FrameContext) importedTextureID(rn *textureNode) uint64 {
	id := fc.assignImageID(rn.importedImg)
	fc.texByID[id] = &gpuTexture{
		id: id, img: rn.importedImg, format: rn.format,
		width: rn.width, height: rn.height, depth: rn.depth,
		mipLevels: rn.mipLevels, arraySize: rn.arraySize,
	}
	return id
}

func (fc *FrameContext) lookupTexture(id uint64) *gpuTexture   { return fc.texByID[id] }
func (fc *FrameContext) lookupRenderPass(id uint64) *gpuRenderPass { return fc.rpByID[id] }
func (fc *FrameContext) lookupView(id uint64) *gpuView         { return fc.viewByID[id] }
func (fc *FrameContext) lookupDescTable(id uint64) *gpuDescTable { return fc.tableByID[id] }
func (fc *FrameContext) lookupCode(id uint64) driver.ShaderCode { return fc.codeByID[id] }

// RegisterShader assigns a stable id to code, for use in PSOKey/
// CPSOKey construction. Registering the same code twice returns
// the same id.
func (fc *FrameContext) RegisterShader(code driver.ShaderCode) uint64 {
	for id, c := range fc.codeByID {
		if c == code {
			return id
		}
	}
	id := newResourceID()
	fc.codeByID[id] = code
	return id
}

// descTable returns the cached DescTable built from heaps,
// building and caching it on first use. The cache key is the
// ordered list of heapIDs, so a different set of heap instances
// yields a different table even when the heaps' shapes match.
func (fc *FrameContext) descTable(heaps []driver.DescHeap, heapIDs []uint64) (*gpuDescTable, error) {
	var c cbuf
	for _, id := range heapIDs {
		c.PutU64(id)
	}
	key := string(c.Bytes())
	if t, ok := fc.descTables[key]; ok {
		fc.tableByID[t.id] = t
		return t, nil
	}
	dt, err := fc.gpu.NewDescTable(heaps)
	if err != nil {
		return nil, err
	}
	t := &gpuDescTable{id: newResourceID(), table: dt}
	fc.descTables[key] = t
	fc.tableByID[t.id] = t
	return t, nil
}

// NewFrame advances every pool's frame-age counter, evicting
// entries idle past the destroy-out-of-date threshold (§5:
// "eviction is purely by frame age").
func (fc *FrameContext) NewFrame() {
	fc.frame++
	// Descriptor sets checked out last frame are returned to
	// descPool before it is swept, per §3 Ownership: otherwise
	// every bindShader call would permanently leak a heap.
	for _, d := range fc.checkedOutDescs {
		fc.descPool.Release(d.desc, d.heap)
	}
	fc.checkedOutDescs = fc.checkedOutDescs[:0]
	fc.texPool.NewFrame()
	fc.bufPool.NewFrame()
	fc.viewPool.NewFrame()
	fc.rpPool.NewFrame()
	fc.fbPool.NewFrame()
	fc.gfxPool.NewFrame()
	fc.compPool.NewFrame()
	fc.descPool.NewFrame()
	clear(fc.texByID)
	fc.globals = fc.globals[:0]
	fc.constCursor = 0
}

// CmdBuffer returns the frame context's command buffer.
func (fc *FrameContext) CmdBuffer() driver.CmdBuffer { return fc.cmd }

// Profiler returns the frame context's GPU timestamp profiler.
func (fc *FrameContext) Profiler() *Profiler { return fc.profiler }

// Destroy releases every GPU object the frame context owns.
func (fc *FrameContext) Destroy() {
	fc.texPool.Destroy()
	fc.bufPool.Destroy()
	fc.viewPool.Destroy()
	fc.rpPool.Destroy()
	fc.fbPool.Destroy()
	fc.gfxPool.Destroy()
	fc.compPool.Destroy()
	fc.descPool.Destroy()
	for _, t := range fc.descTables {
		t.table.Destroy()
	}
	fc.defaultView.view.Destroy()
	fc.defaultTex.img.Destroy()
	fc.defaultSplr.Destroy()
	fc.constRing.Destroy()
	fc.profiler.Destroy()
	fc.cmd.Destroy()
}
