// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// NewTexturePool creates the transient render-target texture
// pool (§4.2: not never-release, destroy-out-of-date). gpu
// creates the concrete driver.Image on a miss; assignID mints
// the stable identity used by downstream view/framebuffer
// descriptors (see FrameContext.assignImageID).
func NewTexturePool(gpu driver.GPU, assignID func(driver.Image) uint64) *Pool[TextureDesc, *gpuTexture] {
	create := func(d TextureDesc) (*gpuTexture, error) {
		img, err := gpu.NewImage(d.Format, driver.Dim3D{Width: d.Width, Height: d.Height, Depth: d.Depth}, d.Layers, d.MipLevels, d.Samples, d.Usage)
		if err != nil {
			return nil, err
		}
		return &gpuTexture{
			id: assignID(img), img: img, format: d.Format,
			width: d.Width, height: d.Height, depth: d.Depth,
			mipLevels: d.MipLevels, arraySize: d.Layers,
		}, nil
	}
	destroy := func(t *gpuTexture) { t.img.Destroy() }
	return NewPool[TextureDesc, *gpuTexture](false, true, create, destroy, nil)
}
