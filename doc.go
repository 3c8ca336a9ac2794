// Package tuplefilter provides a per-tuple marking and classification
// structure for block-based table storage.
//
// A Filter is a lightweight shadow of a table: a dense byte array with one
// marker per physical tuple slot, built from the table's block layout and its
// set of active tuples. A processing pass (scan, compaction, export sweep)
// marks tuples it visits with small state codes and later iterates, in
// ascending physical order, exactly the slots carrying a given code — without
// touching the table or its tuples.
//
// The physical tuple address and the dense index into the marker array are
// related by:
//
//	index = (address - blockBase) / tupleLength + blockOffset
//
// where blockOffset is the dense index of the block's first slot
// (blockNumber * tuplesPerBlock). Translation is a two-level lookup: a coarse
// search for the owning block, then pointer arithmetic within it. A one-entry
// block cache makes the coarse step O(1) for block-sequential scans.
//
// # Lifecycle
//
// A Filter is a single-pass scratch structure: build it from a table snapshot,
// run one processing pass, discard it. It never resizes, never renumbers, and
// is not safe for concurrent use.
//
//	f := tuplefilter.FromTable(tbl)
//	for addr := range tbl.ActiveTuples() {
//	    if stale(addr) {
//	        f.Set(addr, markSweep)
//	    }
//	}
//	for idx := range f.All(markSweep) {
//	    reclaim(f.Address(idx))
//	}
//
// # Contract model
//
// Every failure mode here is a misuse by the calling pass, not a runtime
// condition: out-of-range indices, addresses outside all registered blocks,
// writes to never-activated slots, and cross-filter iterator comparison all
// panic. There is nothing to recover — the pass is broken, not the data.
package tuplefilter
