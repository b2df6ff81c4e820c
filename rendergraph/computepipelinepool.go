// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// NewComputePipelinePool creates the compute pipeline pool
// (§4.2: never-release, destroy-out-of-date).
func NewComputePipelinePool(gpu driver.GPU, codeByID func(id uint64) driver.ShaderCode, descTableByID func(id uint64) *gpuDescTable) *Pool[CPSOKey, *gpuPipeline] {
	create := func(k CPSOKey) (*gpuPipeline, error) {
		state := &driver.CompState{
			Func: driver.ShaderFunc{Code: codeByID(k.CodeID), Name: k.Func},
			Desc: descTableByID(k.DescTableID).table,
		}
		pl, err := gpu.NewPipeline(state)
		if err != nil {
			return nil, err
		}
		return &gpuPipeline{id: newResourceID(), pl: pl}, nil
	}
	destroy := func(p *gpuPipeline) { p.pl.Destroy() }
	return NewPool[CPSOKey, *gpuPipeline](true, true, create, destroy, nil)
}
