// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// NewGraphicsPipelinePool creates the graphics pipeline pool
// (§4.2: never-release, destroy-out-of-date). rpByID and
// descTableByID resolve the ids carried in a PSOKey into the
// concrete driver.RenderPass/driver.DescTable the pipeline must
// be built against.
func NewGraphicsPipelinePool(gpu driver.GPU, codeByID func(id uint64) driver.ShaderCode, rpByID func(id uint64) *gpuRenderPass, descTableByID func(id uint64) *gpuDescTable) *Pool[PSOKey, *gpuPipeline] {
	create := func(k PSOKey) (*gpuPipeline, error) {
		state := &driver.GraphState{
			VertFunc: driver.ShaderFunc{Code: codeByID(k.VertCodeID), Name: k.VertFunc},
			FragFunc: driver.ShaderFunc{Code: codeByID(k.FragCodeID), Name: k.FragFunc},
			Desc:     descTableByID(k.DescTableID).table,
			Input:    k.Vertex,
			Topology: k.Topology,
			Raster:   k.Raster,
			Samples:  k.Samples,
			DS:       k.DS,
			Blend:    k.Blend,
			Pass:     rpByID(k.RenderPassID).pass,
			Subpass:  k.Subpass,
		}
		pl, err := gpu.NewPipeline(state)
		if err != nil {
			return nil, err
		}
		return &gpuPipeline{id: newResourceID(), pl: pl}, nil
	}
	destroy := func(p *gpuPipeline) { p.pl.Destroy() }
	return NewPool[PSOKey, *gpuPipeline](true, true, create, destroy, nil)
}
