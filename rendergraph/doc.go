// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package rendergraph implements a frame-scoped render graph:
// passes and virtual resources are recorded declaratively by a
// Builder, culled and ordered by Compile, and finally turned
// into command buffers by Execute against an abstract
// Vulkan-class driver.GPU.
//
// A typical frame looks like:
//
//	g := rendergraph.New()
//	b := g.ImportBackbuffer(img, width, height, format)
//	// ... record passes via g.AddRenderPass, g.AddUploadTexturePass, etc.
//	g.Present(b)
//	cg, err := rendergraph.Compile(g)
//	cb, err := rendergraph.Execute(cg, frameCtx)
//	gpu.Commit([]driver.CmdBuffer{cb}, done)
//
// Object pools (textures, views, render passes, framebuffers,
// pipelines, descriptor sets) live in a FrameContext and are
// reused across frames; the Graph itself is discarded at the
// end of every frame.
package rendergraph
