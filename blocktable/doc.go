// Package blocktable provides a minimal in-memory block-structured tuple
// store: fixed-geometry blocks allocated on demand, each holding a fixed
// number of same-sized tuple slots addressed by their real memory location.
//
// It exists to drive tuplefilter with genuine sparse, block-fragmented
// addresses (it implements tuplefilter.Table) and is deliberately not a
// storage engine: no versioning, no persistence, no concurrency control.
package blocktable
