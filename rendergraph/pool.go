// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

// frameBeforeOutOfDate is the number of frames an entry may
// sit unused in a pool with destroyOutOfDate set before it is
// evicted and destroyed. The canonical frame context count is
// 3 (matching a triple-buffered swapchain), so this threshold
// gives an entry several frames' worth of slack before being
// reclaimed.
const frameBeforeOutOfDate = 10

// poolEntry is one bucket slot: a cached value plus the
// canonical bytes of the descriptor it was created/released
// with (for collision resolution) and the frame it was last
// touched.
type poolEntry[D descriptor, V any] struct {
	desc    D
	key     []byte
	value   V
	touched uint64
}

// Pool is a lifetime-tracked multimap pool, keyed by a
// descriptor's canonical bytes and bucketed by their
// murmurHash64. A Go map bucket slice stands in for the C++
// unordered_multimap's duplicate-key bucket, since Go maps do
// not natively support repeated keys.
//
// neverRelease marks a pool whose fetched entries remain keyed
// in the map (their touched timestamp refreshes instead);
// appropriate for stateless, immutable GPU objects such as
// pipelines, render passes, framebuffers and views.
// destroyOutOfDate enables a per-NewFrame sweep that destroys
// entries untouched for frameBeforeOutOfDate frames or more.
// An optional upstream pool services misses instead of create,
// enabling a per-frame sub-pool backed by a shared pool.
type Pool[D descriptor, V any] struct {
	neverRelease     bool
	destroyOutOfDate bool
	create           func(D) (V, error)
	destroy          func(V)
	upstream         *Pool[D, V]

	buckets map[uint64][]poolEntry[D, V]
	frame   uint64
}

// NewPool constructs a Pool. create is invoked on a miss that
// upstream cannot or does not service; destroy releases the
// underlying GPU object. upstream may be nil.
func NewPool[D descriptor, V any](neverRelease, destroyOutOfDate bool, create func(D) (V, error), destroy func(V), upstream *Pool[D, V]) *Pool[D, V] {
	return &Pool[D, V]{
		neverRelease:     neverRelease,
		destroyOutOfDate: destroyOutOfDate,
		create:           create,
		destroy:          destroy,
		upstream:         upstream,
		buckets:          make(map[uint64][]poolEntry[D, V]),
	}
}

// Get returns a V matching descriptor d, creating one on a
// miss (delegating to upstream first, if set). Stateful pools
// (neverRelease == false) remove the returned entry from the
// map; stateless pools leave it in place and only refresh its
// touched timestamp.
func (p *Pool[D, V]) Get(d D) (V, error) {
	key := d.canonicalBytes()
	h := murmurHash64(key)
	bucket := p.buckets[h]
	for i := range bucket {
		if !descEqual(bucket[i].key, key) {
			continue
		}
		v := bucket[i].value
		if p.neverRelease {
			bucket[i].touched = p.frame
			return v, nil
		}
		bucket = append(bucket[:i], bucket[i+1:]...)
		if len(bucket) == 0 {
			delete(p.buckets, h)
		} else {
			p.buckets[h] = bucket
		}
		return v, nil
	}
	if p.upstream != nil {
		return p.upstream.Get(d)
	}
	v, err := p.create(d)
	if err != nil {
		var zero V
		return zero, err
	}
	if p.neverRelease {
		p.buckets[h] = append(bucket, poolEntry[D, V]{desc: d, key: key, value: v, touched: p.frame})
	}
	return v, nil
}

// Release returns v to the pool, keyed by d (the same
// descriptor used to obtain it, or the descriptor the caller
// recomputed for v). Stateless pools do nothing: release is
// implicit, since Get never removed the entry.
func (p *Pool[D, V]) Release(d D, v V) {
	if p.neverRelease {
		return
	}
	key := d.canonicalBytes()
	h := murmurHash64(key)
	p.buckets[h] = append(p.buckets[h], poolEntry[D, V]{desc: d, key: key, value: v, touched: p.frame})
}

// NewFrame advances the pool's frame counter and, if
// destroyOutOfDate is set, destroys every entry whose touched
// timestamp is frameBeforeOutOfDate or more frames old.
func (p *Pool[D, V]) NewFrame() {
	p.frame++
	if !p.destroyOutOfDate {
		return
	}
	var evicted int
	for h, bucket := range p.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if p.frame-e.touched >= frameBeforeOutOfDate {
				p.destroy(e.value)
				evicted++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(p.buckets, h)
		} else {
			p.buckets[h] = kept
		}
	}
	if evicted > 0 {
		logger().Info("pool eviction sweep", "evicted", evicted, "frame", p.frame)
	}
}

// Destroy releases every entry currently held by the pool:
// if an upstream is set, entries are handed back to it
// (Release); otherwise they are destroyed directly. The pool
// is left empty and usable afterward.
func (p *Pool[D, V]) Destroy() {
	for h, bucket := range p.buckets {
		for _, e := range bucket {
			if p.upstream != nil {
				p.upstream.Release(e.desc, e.value)
			} else {
				p.destroy(e.value)
			}
		}
		delete(p.buckets, h)
	}
}

// Len returns the total number of entries currently cached
// across every bucket (test/diagnostic helper).
func (p *Pool[D, V]) Len() int {
	n := 0
	for _, bucket := range p.buckets {
		n += len(bucket)
	}
	return n
}
