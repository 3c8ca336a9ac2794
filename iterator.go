package tuplefilter

// Iterator is a forward-only cursor over the dense indices of slots carrying
// one target marker.
//
// Membership is evaluated at Advance time: an iterator positioned on a
// matching slot stays positioned there even if a later Set changes another
// slot, and a slot rewritten before the cursor reaches it is simply skipped
// or picked up under its new marker. There is no decrement, no random access
// and no removal; the underlying Filter is rebuilt per pass instead of
// supporting mutation through its iterators.
//
// An Iterator borrows its Filter and must not outlive it.
type Iterator struct {
	f      *Filter
	marker Marker
	idx    uint64
}

// Begin returns an iterator positioned on the first slot carrying marker m,
// or one equal to End(m) if there is none.
func (f *Filter) Begin(m Marker) Iterator {
	it := Iterator{f: f, marker: m, idx: invalidIndex}
	if !f.Empty() {
		it.Advance()
	}
	return it
}

// End returns the past-the-end iterator for marker m: one past the
// high-water mark, or the empty-filter sentinel position.
func (f *Filter) End(m Marker) Iterator {
	idx := invalidIndex
	if !f.Empty() {
		idx = f.lastActive + 1
	}
	return Iterator{f: f, marker: m, idx: idx}
}

// Advance moves the cursor to the next slot carrying the target marker, or
// to the past-the-end position if none remains. Advancing an exhausted
// iterator is a no-op.
func (it *Iterator) Advance() {
	last := it.f.lastActive
	if last == invalidIndex || (it.idx > last && it.idx != invalidIndex) {
		return
	}
	for {
		it.idx++
		if it.idx > last || it.f.markers[it.idx] == it.marker {
			return
		}
	}
}

// Index returns the dense index the cursor is positioned on. Only valid on
// an iterator that is not equal to End.
func (it Iterator) Index() uint64 {
	return it.idx
}

// Address returns the physical tuple address of the current position.
func (it Iterator) Address() uint64 {
	return it.f.Address(it.idx)
}

// Equal reports whether two iterators over the same Filter are at the same
// position. Comparing iterators from different Filters is a caller bug and
// panics.
func (it Iterator) Equal(other Iterator) bool {
	if it.f != other.f {
		panic("tuplefilter: comparing iterators from different filters")
	}
	return it.idx == other.idx
}
