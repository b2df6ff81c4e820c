// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// renderPassSubpasses describes the single-subpass layout every
// pooled render pass uses. Multi-subpass render passes are not
// needed by the encoder's per-pass dispatch model, so the pool
// always requests one subpass referencing every attachment.
func renderPassSubpasses(d RenderPassDesc) []driver.Subpass {
	color := make([]int, d.ColorCount)
	for i := range color {
		color[i] = i
	}
	ds := -1
	if d.HasDepth {
		ds = d.ColorCount
	}
	return []driver.Subpass{{Color: color, DS: ds, Wait: false}}
}

// NewRenderPassPool creates the render pass pool (§4.2: never-
// release, destroy-out-of-date).
func NewRenderPassPool(gpu driver.GPU) *Pool[RenderPassDesc, *gpuRenderPass] {
	create := func(d RenderPassDesc) (*gpuRenderPass, error) {
		att := make([]driver.Attachment, 0, d.ColorCount+1)
		att = append(att, d.Color[:d.ColorCount]...)
		if d.HasDepth {
			att = append(att, d.Depth)
		}
		rp, err := gpu.NewRenderPass(att, renderPassSubpasses(d))
		if err != nil {
			return nil, err
		}
		return &gpuRenderPass{id: newResourceID(), pass: rp}, nil
	}
	destroy := func(rp *gpuRenderPass) { rp.pass.Destroy() }
	return NewPool[RenderPassDesc, *gpuRenderPass](true, true, create, destroy, nil)
}
