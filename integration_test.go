package tuplefilter_test

import (
	"encoding/binary"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tuplefilter"
	"github.com/hupe1980/tuplefilter/blocktable"
)

// Builds a filter over a real block-structured table and runs a
// mark-and-sweep style pass against live memory addresses.
func TestFromTable_MarkAndSweep(t *testing.T) {
	const tupleLength = 16
	tbl := blocktable.New(tupleLength, blocktable.WithTuplesPerBlock(8))

	// Enough tuples to span several blocks.
	addrs := make([]uint64, 0, 100)
	for i := range 100 {
		var data [tupleLength]byte
		binary.LittleEndian.PutUint64(data[:], uint64(i))

		addr, err := tbl.Insert(data[:])
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}

	// Punch holes so active tuples are sparse within blocks.
	for i := 0; i < len(addrs); i += 3 {
		require.NoError(t, tbl.Delete(addrs[i]))
	}

	f := tuplefilter.FromTable(tbl)
	assert.False(t, f.Empty())
	assert.Equal(t, len(tbl.BlockAddresses())*8, f.Len())

	// Every live address round-trips through the dense index.
	live := slices.Collect(tbl.ActiveTuples())
	require.Len(t, live, tbl.Count())
	for _, addr := range live {
		assert.Equal(t, addr, f.Address(f.Index(addr)))
	}

	// Post-init ACTIVE iteration visits exactly the live tuples, ascending.
	var visited []uint64
	for idx := range f.All(tuplefilter.Active) {
		visited = append(visited, f.Address(idx))
	}
	assert.Len(t, visited, len(live))
	assert.ElementsMatch(t, live, visited)
	assert.True(t, slices.IsSortedFunc(visited, func(a, b uint64) int {
		return int(f.Index(a)) - int(f.Index(b))
	}))

	// Mark every tuple with an odd payload and sweep only those.
	const markOdd tuplefilter.Marker = 7
	wantOdd := 0
	for _, addr := range live {
		data, err := tbl.Tuple(addr)
		require.NoError(t, err)
		if binary.LittleEndian.Uint64(data)%2 == 1 {
			f.Set(addr, markOdd)
			wantOdd++
		}
	}

	swept := 0
	for idx := range f.All(markOdd) {
		data, err := tbl.Tuple(f.Address(idx))
		require.NoError(t, err)
		assert.EqualValues(t, 1, binary.LittleEndian.Uint64(data)%2)
		swept++
	}
	assert.Equal(t, wantOdd, swept)

	// The two marker sets partition the live tuples.
	assert.Equal(t, len(live), swept+len(f.Bitmap(tuplefilter.Active).ToArray()))
}

func TestFromTable_EmptyTable(t *testing.T) {
	tbl := blocktable.New(8)

	f := tuplefilter.FromTable(tbl)
	assert.True(t, f.Empty())
	assert.Equal(t, 0, f.Len())
}

func TestFromTable_FullyDeletedTable(t *testing.T) {
	tbl := blocktable.New(8)
	addr, err := tbl.Insert(make([]byte, 8))
	require.NoError(t, err)
	require.NoError(t, tbl.Delete(addr))

	// Blocks remain allocated but nothing is active.
	f := tuplefilter.FromTable(tbl)
	assert.True(t, f.Empty())
	assert.Equal(t, int(tbl.TuplesPerBlock()), f.Len())
	assert.True(t, f.Begin(tuplefilter.Active).Equal(f.End(tuplefilter.Active)))
}
