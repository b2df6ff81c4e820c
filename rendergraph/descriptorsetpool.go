// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// descSetCopies is the number of heap copies requested from
// DescHeap.New on creation. A single copy is enough: contents
// are always rewritten by the encoder before a cache-missed
// bind, so there is no need to round-robin copies within a
// pooled heap the way a ring-buffered upload heap would.
const descSetCopies = 1

// NewDescriptorSetPool creates the descriptor heap pool (§4.2:
// not never-release, destroy-out-of-date). Unlike the texture
// and buffer pools, a released heap is only reused once its
// shape (DescSetDesc) matches exactly; the encoder always
// rewrites its contents after a Get, whether the heap was
// freshly created or recycled.
func NewDescriptorSetPool(gpu driver.GPU) *Pool[DescSetDesc, *gpuDescHeap] {
	create := func(d DescSetDesc) (*gpuDescHeap, error) {
		h, err := gpu.NewDescHeap(d.Descriptors)
		if err != nil {
			return nil, err
		}
		if err := h.New(descSetCopies); err != nil {
			h.Destroy()
			return nil, err
		}
		return &gpuDescHeap{id: newResourceID(), heap: h}, nil
	}
	destroy := func(h *gpuDescHeap) { h.heap.Destroy() }
	return NewPool[DescSetDesc, *gpuDescHeap](false, true, create, destroy, nil)
}
