// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package ctxt holds the driver.GPU that a render graph was
// opened against, along with its cached limits.
//
// Unlike engine/internal/ctxt in the teacher codebase, this
// package does not scan driver.Drivers() and open one itself:
// the core ships no concrete backend, so the embedding
// application selects and opens a driver.Driver on its own and
// hands the resulting driver.GPU to Use.
package ctxt

import (
	"github.com/gviegas/rendergraph/driver"
)

var (
	gpu    driver.GPU
	limits driver.Limits
)

// Use installs gpu as the context's GPU and caches its limits.
// It must be called once before any rendergraph package
// function that consults GPU or Limits is used.
func Use(g driver.GPU) {
	gpu = g
	limits = g.Limits()
}

// GPU returns the context's driver.GPU, or nil if Use has not
// been called yet.
func GPU() driver.GPU { return gpu }

// Limits returns the driver.Limits of the context's GPU. The
// value is cached at Use time and must not be mutated by the
// caller.
func Limits() *driver.Limits { return &limits }

// DynamicStateTier1 reports whether the context's GPU supports
// setting primitive topology, cull mode, front face and
// depth test/write/compare dynamically, outside of a Pipeline.
func DynamicStateTier1() bool { return limits.DynamicStateTier1 }
