// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

// QueryPool is the interface that defines a pool of GPU
// timestamp queries.
// Timestamps are written into a pool by CmdBuffer.WriteTimestamp
// and read back once the command buffer(s) that wrote them have
// completed execution (as reported by GPU.Commit).
type QueryPool interface {
	Destroyer

	// Count returns the number of timestamp slots in the pool.
	Count() int

	// Resolve reads back every slot's timestamp, in
	// implementation-defined ticks.
	// It must only be called after the command buffer(s) that
	// wrote the pool's timestamps have finished executing;
	// calling it earlier is a precondition violation of the
	// underlying driver.
	Resolve() ([]uint64, error)
}
