// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"sync/atomic"

	"github.com/gviegas/rendergraph/driver"
)

// nextResourceID hands out stable identities for devirtualized
// GPU objects. driver.Image/RenderPass/etc. are interfaces, so
// they cannot be serialized into a descriptor's canonical bytes
// directly (an interface's dynamic pointer is not something a
// normalization step should trust); every devirtualized object
// instead carries a monotonic uint64 id assigned here, and
// downstream descriptors (views, framebuffers, pipelines) key
// off that id instead of the interface value itself.
var nextResourceID atomic.Uint64

func newResourceID() uint64 { return nextResourceID.Add(1) }

// gpuTexture is a devirtualized managed or imported texture:
// the concrete driver.Image plus the metadata the barrier
// planner and view pool need.
type gpuTexture struct {
	id        uint64
	img       driver.Image
	format    driver.PixelFmt
	width     int
	height    int
	depth     int
	mipLevels int
	arraySize int
}

// gpuRenderPass is a pooled driver.RenderPass plus its id.
type gpuRenderPass struct {
	id   uint64
	pass driver.RenderPass
}

// gpuView is a pooled driver.ImageView plus its id.
type gpuView struct {
	id   uint64
	view driver.ImageView
}

// gpuFramebuf is a pooled driver.Framebuf plus its id.
type gpuFramebuf struct {
	id uint64
	fb driver.Framebuf
}

// gpuPipeline is a pooled driver.Pipeline plus its id, used to
// detect pipeline switches cheaply in the encoder.
type gpuPipeline struct {
	id uint64
	pl driver.Pipeline
}

// gpuDescHeap is a pooled driver.DescHeap plus its id.
type gpuDescHeap struct {
	id   uint64
	heap driver.DescHeap
}

// gpuDescTable is a driver.DescTable plus its id. Unlike the
// other pooled resources, descriptor tables are built once per
// distinct combination of heap instances (by heap id) and kept
// for the FrameContext's lifetime, so FrameContext caches them
// directly rather than through a Pool.
type gpuDescTable struct {
	id    uint64
	table driver.DescTable
}
