package tuplefilter

import (
	"fmt"
	"iter"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// invalidIndex is the sentinel for "no index": the high-water mark of an
// empty filter and the position of iterators over it.
const invalidIndex = ^uint64(0)

// Table is the read-only view of a block-based tuple store that a Filter is
// built from. Implementations enumerate a consistent snapshot: every address
// yielded by ActiveTuples must lie inside one of the blocks reported by
// BlockAddresses, and the layout must not change while the Filter is in use.
type Table interface {
	// BlockAddresses returns the base address of every allocated block.
	BlockAddresses() []uint64
	// TuplesPerBlock returns the number of tuple slots per block.
	TuplesPerBlock() uint32
	// TupleLength returns the byte stride of a tuple slot.
	TupleLength() uint32
	// ActiveTuples enumerates the addresses of all live tuples.
	ActiveTuples() iter.Seq[uint64]
}

// Filter maps every physical tuple slot of one table to a dense marker slot.
//
// The marker array is sized to the table's full capacity
// (blocks x tuplesPerBlock) and never resized. Address-to-index translation
// runs through a one-entry block cache that is a pure optimization: resolving
// the same addresses in any order yields the same indices.
//
// Filter is not safe for concurrent use. Build one per processing pass and
// discard it when the pass ends.
type Filter struct {
	markers []Marker

	// blocks holds the registered base addresses in ascending order; the
	// position of an address is its block number.
	blocks []uint64
	// blockOffsets maps a block base address to the dense index of the
	// block's first slot (blockNumber * tuplesPerBlock).
	blockOffsets map[uint64]uint64

	tuplesPerBlock uint32
	tupleLength    uint32

	// One-entry cache of the most recently resolved block. Scans are
	// block-sequential, so consecutive lookups usually hit it.
	cachedBlockAddr   uint64
	cachedBlockOffset uint64
	cacheValid        bool

	// lastActive is the largest dense index ever activated, or invalidIndex
	// if the table had no active tuples. It never decreases and bounds all
	// iteration.
	lastActive uint64
}

// New builds a Filter for a table with the given block base addresses and
// slot geometry, activating the slot of every address yielded by active.
//
// The block list may be passed in any order; duplicate base addresses,
// overlapping blocks, zero geometry, or an active address outside every
// block panic. active may be nil for an empty table.
func New(blocks []uint64, tuplesPerBlock, tupleLength uint32, active iter.Seq[uint64]) *Filter {
	if tuplesPerBlock == 0 || tupleLength == 0 {
		panic("tuplefilter: block geometry must be non-zero")
	}

	f := &Filter{
		markers:        make([]Marker, uint64(len(blocks))*uint64(tuplesPerBlock)),
		blocks:         slices.Clone(blocks),
		blockOffsets:   make(map[uint64]uint64, len(blocks)),
		tuplesPerBlock: tuplesPerBlock,
		tupleLength:    tupleLength,
		lastActive:     invalidIndex,
	}
	for i := range f.markers {
		f.markers[i] = Inactive
	}

	slices.Sort(f.blocks)
	span := f.blockSpan()
	for i, addr := range f.blocks {
		if _, dup := f.blockOffsets[addr]; dup {
			panic(fmt.Sprintf("tuplefilter: duplicate block address 0x%x", addr))
		}
		if i > 0 && addr-f.blocks[i-1] < span {
			panic(fmt.Sprintf("tuplefilter: blocks 0x%x and 0x%x overlap", f.blocks[i-1], addr))
		}
		f.blockOffsets[addr] = uint64(i) * uint64(tuplesPerBlock)
	}

	if len(f.blocks) > 0 {
		f.cachedBlockAddr = f.blocks[0]
		f.cachedBlockOffset = 0
		f.cacheValid = true
	}

	if active != nil {
		for addr := range active {
			f.activate(addr)
		}
	}

	return f
}

// FromTable builds a Filter from a table snapshot.
func FromTable(t Table) *Filter {
	return New(t.BlockAddresses(), t.TuplesPerBlock(), t.TupleLength(), t.ActiveTuples())
}

// activate flips a slot from Inactive to Active and advances the high-water
// mark. Construction-time only; each slot is activated at most once.
func (f *Filter) activate(addr uint64) {
	idx := f.Index(addr)
	if f.markers[idx] != Inactive {
		panic(fmt.Sprintf("tuplefilter: tuple 0x%x activated twice", addr))
	}
	f.markers[idx] = Active
	if f.lastActive == invalidIndex || f.lastActive < idx {
		f.lastActive = idx
	}
}

// Index resolves the dense index of a tuple address.
//
// The address must lie inside a registered block; anything else is a caller
// bug and panics.
func (f *Filter) Index(addr uint64) uint64 {
	offset := f.findBlockOffset(addr)
	return (addr-f.cachedBlockAddr)/uint64(f.tupleLength) + offset
}

// findBlockOffset returns the tuple offset of the block owning addr,
// refreshing the one-entry cache to that block. Hot path: a cache hit costs
// two comparisons and no map probe.
func (f *Filter) findBlockOffset(addr uint64) uint64 {
	span := f.blockSpan()
	if f.cacheValid && addr >= f.cachedBlockAddr && addr < f.cachedBlockAddr+span {
		return f.cachedBlockOffset
	}

	// Coarse lookup: greatest registered base <= addr.
	i, exact := slices.BinarySearch(f.blocks, addr)
	if !exact {
		if i == 0 {
			panic(fmt.Sprintf("tuplefilter: address 0x%x not in any registered block", addr))
		}
		i--
	}
	base := f.blocks[i]
	if addr >= base+span {
		panic(fmt.Sprintf("tuplefilter: address 0x%x not in any registered block", addr))
	}

	f.cachedBlockAddr = base
	f.cachedBlockOffset = f.blockOffsets[base]
	f.cacheValid = true

	return f.cachedBlockOffset
}

func (f *Filter) blockSpan() uint64 {
	return uint64(f.tuplesPerBlock) * uint64(f.tupleLength)
}

// Set writes a marker into the slot of a tuple address and returns the
// slot's dense index.
//
// The slot must have been activated at construction: writing to a
// never-activated slot, writing beyond the high-water mark, or writing
// Inactive itself panics.
func (f *Filter) Set(addr uint64, m Marker) uint64 {
	if m == Inactive {
		panic("tuplefilter: cannot mark a tuple inactive")
	}
	idx := f.Index(addr)
	if f.lastActive == invalidIndex || idx > f.lastActive {
		panic(fmt.Sprintf("tuplefilter: index %d beyond last active index", idx))
	}
	if f.markers[idx] == Inactive {
		panic(fmt.Sprintf("tuplefilter: write to inactive slot %d", idx))
	}
	f.markers[idx] = m
	return idx
}

// Get returns the marker at a dense index.
func (f *Filter) Get(idx uint64) Marker {
	if idx >= uint64(len(f.markers)) {
		panic(fmt.Sprintf("tuplefilter: index %d out of range [0,%d)", idx, len(f.markers)))
	}
	return f.markers[idx]
}

// Address returns the physical tuple address of a dense index, the inverse
// of Index: addr = blockBase + (idx - blockOffset) * tupleLength.
func (f *Filter) Address(idx uint64) uint64 {
	if idx >= uint64(len(f.markers)) {
		panic(fmt.Sprintf("tuplefilter: index %d out of range [0,%d)", idx, len(f.markers)))
	}
	blockNum := idx / uint64(f.tuplesPerBlock)
	blockOffset := blockNum * uint64(f.tuplesPerBlock)
	return f.blocks[blockNum] + (idx-blockOffset)*uint64(f.tupleLength)
}

// Empty reports whether no tuple was active at construction.
func (f *Filter) Empty() bool {
	return f.lastActive == invalidIndex
}

// Len returns the total slot capacity across all registered blocks.
func (f *Filter) Len() int {
	return len(f.markers)
}

// All returns an iterator over the dense indices of every slot carrying the
// given marker, in ascending order.
func (f *Filter) All(m Marker) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		end := f.End(m)
		for it := f.Begin(m); !it.Equal(end); it.Advance() {
			if !yield(it.Index()) {
				return
			}
		}
	}
}

// Bitmap materializes the set of dense indices carrying the given marker as
// a 64-bit roaring bitmap, the set representation engine callers hand around.
func (f *Filter) Bitmap(m Marker) *roaring64.Bitmap {
	b := roaring64.New()
	for idx := range f.All(m) {
		b.Add(idx)
	}
	return b
}
