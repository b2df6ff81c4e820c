// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

// NewViewPool creates the texture view pool (§4.2: never-
// release, destroy-out-of-date). texByID resolves the
// gpuTexture a ViewDesc's TextureID refers to; it must reflect
// the current frame's devirtualized/imported textures before
// any Get call. Because the pool is never-release, a given
// ViewDesc always resolves to the same *gpuView across frames,
// so its id (minted once, at creation) is stable for as long
// as the view itself is not evicted by a destroy-out-of-date
// sweep.
func NewViewPool(texByID func(id uint64) *gpuTexture) *Pool[ViewDesc, *gpuView] {
	create := func(d ViewDesc) (*gpuView, error) {
		t := texByID(d.TextureID)
		v, err := t.img.NewView(d.Type, d.Layer, d.Layers, d.Level, d.Levels)
		if err != nil {
			return nil, err
		}
		return &gpuView{id: newResourceID(), view: v}, nil
	}
	destroy := func(v *gpuView) { v.view.Destroy() }
	return NewPool[ViewDesc, *gpuView](true, true, create, destroy, nil)
}
