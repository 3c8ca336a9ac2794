package tuplefilter

import "fmt"

// Marker is the per-slot state code stored in a Filter.
//
// Two codes are reserved: Inactive for slots that hold no tuple and Active
// for slots activated at construction. Every other int8 value is open for
// caller-defined pass states ("processed", "pending relocation", ...).
// Membership testing is a single byte comparison, so Marker is a plain value
// type, not an interface.
type Marker int8

const (
	// Inactive marks a slot that holds no tuple. Slots start Inactive and
	// may never return to it; Set rejects it as a target value.
	Inactive Marker = -1

	// Active is the default state of every activated slot after
	// construction, before the processing pass assigns its own codes.
	Active Marker = 0
)

// String returns a diagnostic representation of the marker.
func (m Marker) String() string {
	switch m {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("marker(%d)", int8(m))
	}
}
