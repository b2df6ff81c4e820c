// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import "testing"

// TestHashEqualConsistency covers property 5: MurmurHash(A) ==
// MurmurHash(B) whenever the canonical bytes of A and B match.
func TestHashEqualConsistency(t *testing.T) {
	d1 := TextureDesc{Width: 256, Height: 256, Depth: 1, MipLevels: 1, Layers: 1, Format: 0, Samples: 1, Usage: 0}
	d2 := d1
	b1, b2 := d1.canonicalBytes(), d2.canonicalBytes()
	if !descEqual(b1, b2) {
		t.Fatalf("canonicalBytes: identical descriptors produced different bytes")
	}
	if murmurHash64(b1) != murmurHash64(b2) {
		t.Errorf("murmurHash64: equal byte slices hashed differently")
	}

	d3 := d1
	d3.Width = 512
	b3 := d3.canonicalBytes()
	if descEqual(b1, b3) {
		t.Errorf("canonicalBytes: differing descriptors produced identical bytes")
	}
}

// TestPoolNewFrameEvictsToEmpty covers property 8: calling
// NewFrame repeatedly past the eviction threshold, with no
// further Get/Release traffic, drains a destroy-out-of-date
// pool to empty, and further NewFrame calls are idempotent.
func TestPoolNewFrameEvictsToEmpty(t *testing.T) {
	destroyed := 0
	create := func(d TextureDesc) (*gpuTexture, error) { return &gpuTexture{}, nil }
	destroy := func(*gpuTexture) { destroyed++ }
	p := NewPool[TextureDesc, *gpuTexture](true, true, create, destroy, nil)

	d := TextureDesc{Width: 64, Height: 64, Depth: 1, MipLevels: 1, Layers: 1}
	if _, err := p.Get(d); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("Get: want 1 entry, got %d", p.Len())
	}

	for i := 0; i < frameBeforeOutOfDate+1; i++ {
		p.NewFrame()
	}
	if p.Len() != 0 {
		t.Fatalf("NewFrame: want pool empty after eviction threshold, got %d entries", p.Len())
	}
	if destroyed != 1 {
		t.Errorf("NewFrame: want destroy called once, got %d", destroyed)
	}

	// Further NewFrame calls with no contents are idempotent.
	p.NewFrame()
	p.NewFrame()
	if p.Len() != 0 {
		t.Errorf("NewFrame: pool not idempotently empty, got %d entries", p.Len())
	}
}

// TestBufferPoolReleaseAndReuse exercises the stateful
// (neverRelease == false) pool path: a released entry is
// handed back out on the next matching Get instead of being
// recreated.
func TestBufferPoolReleaseAndReuse(t *testing.T) {
	gpu := newFakeGPU()
	p := NewBufferPool(gpu)
	d := BufferDesc{Size: 256, DescType: 0, Visible: false, Usage: 0}

	b1, err := p.Get(d)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	p.Release(d, b1)
	if p.Len() != 1 {
		t.Fatalf("Release: want 1 entry held, got %d", p.Len())
	}
	b2, err := p.Get(d)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b1 != b2 {
		t.Errorf("Get: want the released buffer to be reused, got a different instance")
	}
	if p.Len() != 0 {
		t.Errorf("Get: want pool drained after reuse, got %d entries", p.Len())
	}
}
