// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// bufferUsage derives a driver.Usage mask from a buffer's
// descriptor type and memory residency.
func bufferUsage(descType driver.DescType, mem MemUsage) driver.Usage {
	var u driver.Usage
	switch descType {
	case driver.DConstant:
		u |= driver.UShaderConst
	case driver.DBuffer:
		u |= driver.UShaderRead | driver.UShaderWrite
	}
	if mem == MemCPUOnly {
		// Staging buffers are read by the transfer engine only;
		// no shader-visible usage is required.
		u = driver.UGeneric
	}
	return u
}

// NewBufferPool creates the transient buffer pool (§4.2: not
// never-release, destroy-out-of-date).
func NewBufferPool(gpu driver.GPU) *Pool[BufferDesc, driver.Buffer] {
	create := func(d BufferDesc) (driver.Buffer, error) {
		return gpu.NewBuffer(d.Size, d.Visible, d.Usage)
	}
	destroy := func(b driver.Buffer) { b.Destroy() }
	return NewPool[BufferDesc, driver.Buffer](false, true, create, destroy, nil)
}
