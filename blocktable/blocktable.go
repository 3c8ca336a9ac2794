package blocktable

import (
	"errors"
	"iter"
	"slices"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
)

// DefaultTuplesPerBlock is the slot count of a block unless overridden with
// WithTuplesPerBlock.
const DefaultTuplesPerBlock = 64

var (
	// ErrTupleLength is returned when inserted data does not match the
	// table's tuple length.
	ErrTupleLength = errors.New("blocktable: tuple length mismatch")
	// ErrNotInTable is returned for an address outside every block.
	ErrNotInTable = errors.New("blocktable: address not in table")
	// ErrNotActive is returned when the addressed slot holds no tuple.
	ErrNotActive = errors.New("blocktable: tuple not active")
)

// Option configures a Table.
type Option func(*Table)

// WithTuplesPerBlock sets the number of tuple slots per block.
func WithTuplesPerBlock(n uint32) Option {
	return func(t *Table) {
		if n > 0 {
			t.tuplesPerBlock = n
		}
	}
}

// Table is an in-memory tuple store over independently allocated fixed-size
// blocks. Tuples are addressed by the memory location of their slot; the
// Table must stay alive for as long as any handed-out address is in use.
//
// Table is not safe for concurrent use.
type Table struct {
	// blocks pins the allocations; block number is the allocation order.
	blocks     [][]byte
	blockBases []uint64

	// sortedBases and baseToBlock serve address resolution.
	sortedBases []uint64
	baseToBlock map[uint64]int

	tuplesPerBlock uint32
	tupleLength    uint32

	// occupied tracks live slots by global slot number
	// (blockNumber * tuplesPerBlock + slotInBlock).
	occupied *bitset.BitSet
	// freed holds slot numbers released by Delete, reused before the table
	// grows a new block.
	freed []uint
	// nextSlot is the allocation high-water mark.
	nextSlot uint
}

// New creates an empty table for tuples of the given byte length.
func New(tupleLength uint32, opts ...Option) *Table {
	if tupleLength == 0 {
		panic("blocktable: tuple length must be non-zero")
	}
	t := &Table{
		baseToBlock:    make(map[uint64]int),
		tuplesPerBlock: DefaultTuplesPerBlock,
		tupleLength:    tupleLength,
		occupied:       bitset.New(0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Insert stores a copy of data in a free slot, allocating a new block when
// none is free, and returns the tuple's address.
func (t *Table) Insert(data []byte) (uint64, error) {
	if uint32(len(data)) != t.tupleLength {
		return 0, ErrTupleLength
	}

	var slot uint
	if n := len(t.freed); n > 0 {
		slot = t.freed[n-1]
		t.freed = t.freed[:n-1]
	} else {
		if t.nextSlot == uint(len(t.blocks))*uint(t.tuplesPerBlock) {
			t.grow()
		}
		slot = t.nextSlot
		t.nextSlot++
	}

	copy(t.slotBytes(slot), data)
	t.occupied.Set(slot)

	return t.slotAddress(slot), nil
}

// Delete releases the tuple at addr; its slot becomes reusable.
func (t *Table) Delete(addr uint64) error {
	slot, err := t.resolve(addr)
	if err != nil {
		return err
	}
	t.occupied.Clear(slot)
	t.freed = append(t.freed, slot)
	return nil
}

// Tuple returns the live slot bytes at addr. The slice aliases table memory
// and is valid until the slot is deleted or reused.
func (t *Table) Tuple(addr uint64) ([]byte, error) {
	slot, err := t.resolve(addr)
	if err != nil {
		return nil, err
	}
	return t.slotBytes(slot), nil
}

// Count returns the number of live tuples.
func (t *Table) Count() int {
	return int(t.occupied.Count())
}

// BlockAddresses returns the base address of every allocated block, in
// block-number order.
func (t *Table) BlockAddresses() []uint64 {
	return slices.Clone(t.blockBases)
}

// TuplesPerBlock returns the slot count per block.
func (t *Table) TuplesPerBlock() uint32 {
	return t.tuplesPerBlock
}

// TupleLength returns the byte stride of a tuple slot.
func (t *Table) TupleLength() uint32 {
	return t.tupleLength
}

// ActiveTuples enumerates the addresses of all live tuples in global slot
// order.
func (t *Table) ActiveTuples() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for slot, ok := t.occupied.NextSet(0); ok; slot, ok = t.occupied.NextSet(slot + 1) {
			if !yield(t.slotAddress(slot)) {
				return
			}
		}
	}
}

func (t *Table) grow() {
	blk := make([]byte, uint64(t.tuplesPerBlock)*uint64(t.tupleLength))
	base := uint64(uintptr(unsafe.Pointer(&blk[0])))

	t.baseToBlock[base] = len(t.blocks)
	t.blocks = append(t.blocks, blk)
	t.blockBases = append(t.blockBases, base)

	i, _ := slices.BinarySearch(t.sortedBases, base)
	t.sortedBases = slices.Insert(t.sortedBases, i, base)
}

// resolve maps a tuple address to its global slot number, validating that
// the address hits a live slot boundary.
func (t *Table) resolve(addr uint64) (uint, error) {
	span := uint64(t.tuplesPerBlock) * uint64(t.tupleLength)

	i, exact := slices.BinarySearch(t.sortedBases, addr)
	if !exact {
		if i == 0 {
			return 0, ErrNotInTable
		}
		i--
	}
	base := t.sortedBases[i]
	if addr >= base+span || (addr-base)%uint64(t.tupleLength) != 0 {
		return 0, ErrNotInTable
	}

	blockNum := t.baseToBlock[base]
	slot := uint(blockNum)*uint(t.tuplesPerBlock) + uint((addr-base)/uint64(t.tupleLength))
	if !t.occupied.Test(slot) {
		return 0, ErrNotActive
	}
	return slot, nil
}

func (t *Table) slotBytes(slot uint) []byte {
	blockNum := slot / uint(t.tuplesPerBlock)
	off := uint64(slot%uint(t.tuplesPerBlock)) * uint64(t.tupleLength)
	return t.blocks[blockNum][off : off+uint64(t.tupleLength)]
}

func (t *Table) slotAddress(slot uint) uint64 {
	blockNum := slot / uint(t.tuplesPerBlock)
	off := uint64(slot%uint(t.tuplesPerBlock)) * uint64(t.tupleLength)
	return t.blockBases[blockNum] + off
}
