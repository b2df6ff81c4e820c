// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/driver"
)

// profilerFrames is the number of in-flight frames the
// profiler keeps timestamp storage for, matching the typical
// double/triple-buffered command-buffer ring a FrameContext is
// driven from.
const profilerFrames = 3

// maxTimestampsPerFrame bounds the number of labeled timestamps
// a single frame may record; it is sized generously for a
// render graph with dozens of passes.
const maxTimestampsPerFrame = 64

// Profiler records GPU timestamps across a pass's boundaries so
// callers can attribute execution time per labeled region.
// It is not part of the compiled graph itself, and Execute does
// not call into it: the caller records timestamps through the
// Profiler its FrameContext owns (FrameContext.Profiler).
type Profiler struct {
	pools  [profilerFrames]driver.QueryPool
	labels [profilerFrames][]string
	cursor [profilerFrames]int
	frame  int
}

// NewProfiler creates a Profiler backed by gpu's timestamp
// query pools. If a pool could not be created, it destroys the
// pools created so far and returns the driver's error as is.
func NewProfiler(gpu driver.GPU) (*Profiler, error) {
	p := &Profiler{}
	for i := range p.pools {
		qp, err := gpu.NewQueryPool(maxTimestampsPerFrame)
		if err != nil {
			for j := 0; j < i; j++ {
				p.pools[j].Destroy()
			}
			return nil, err
		}
		p.pools[i] = qp
		p.labels[i] = make([]string, 0, maxTimestampsPerFrame)
	}
	return p, nil
}

// BeginFrame resets the profiler's bookkeeping for the pool
// belonging to the given ring slot (typically FrameContext's
// own frame-in-flight index). It must be called once per frame
// before any Timestamp call targeting that slot.
func (p *Profiler) BeginFrame(slot int) {
	p.frame = slot % profilerFrames
	p.cursor[p.frame] = 0
	p.labels[p.frame] = p.labels[p.frame][:0]
}

// Timestamp records a GPU timestamp labeled name into cb at the
// point this call is made during recording. It is a no-op,
// returning false, once the frame's query pool is exhausted.
func (p *Profiler) Timestamp(cb driver.CmdBuffer, name string) bool {
	i := p.frame
	if p.cursor[i] >= maxTimestampsPerFrame {
		logger().Warn("profiler timestamp slots exhausted", "frame", i, "label", name)
		return false
	}
	cb.WriteTimestamp(p.pools[i], p.cursor[i])
	p.labels[i] = append(p.labels[i], name)
	p.cursor[i]++
	return true
}

// Timing is one resolved, labeled GPU timestamp, in
// implementation-defined ticks.
type Timing struct {
	Label string
	Ticks uint64
}

// CollectTimings resolves every timestamp written for the given
// ring slot since its last BeginFrame. It must only be called
// once the command buffer(s) that wrote those timestamps have
// finished executing (e.g. after the corresponding GPU.Commit
// has reported completion).
func (p *Profiler) CollectTimings(slot int) ([]Timing, error) {
	i := slot % profilerFrames
	ticks, err := p.pools[i].Resolve()
	if err != nil {
		return nil, err
	}
	n := p.cursor[i]
	if n > len(ticks) {
		n = len(ticks)
	}
	out := make([]Timing, n)
	for j := 0; j < n; j++ {
		out[j] = Timing{Label: p.labels[i][j], Ticks: ticks[j]}
	}
	return out, nil
}

// Destroy releases the profiler's query pools.
func (p *Profiler) Destroy() {
	for i := range p.pools {
		if p.pools[i] != nil {
			p.pools[i].Destroy()
			p.pools[i] = nil
		}
	}
}
