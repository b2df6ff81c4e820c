// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// NewFramebufferPool creates the framebuffer pool (§4.2: never-
// release, destroy-out-of-date). rpByID/viewByID resolve the
// ids recorded in a FramebufferDesc to the concrete render pass
// and views the framebuffer must be built from; both must
// reflect the current frame's state before any Get call.
func NewFramebufferPool(rpByID func(id uint64) *gpuRenderPass, viewByID func(id uint64) *gpuView) *Pool[FramebufferDesc, *gpuFramebuf] {
	create := func(d FramebufferDesc) (*gpuFramebuf, error) {
		rp := rpByID(d.RenderPassID)
		iv := make([]driver.ImageView, d.ViewCount)
		for i := 0; i < d.ViewCount; i++ {
			iv[i] = viewByID(d.Views[i]).view
		}
		fb, err := rp.pass.NewFB(iv, d.Width, d.Height, d.Layers)
		if err != nil {
			return nil, err
		}
		return &gpuFramebuf{id: newResourceID(), fb: fb}, nil
	}
	destroy := func(f *gpuFramebuf) { f.fb.Destroy() }
	return NewPool[FramebufferDesc, *gpuFramebuf](true, true, create, destroy, nil)
}
