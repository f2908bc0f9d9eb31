package layout

import "github.com/matchgrid/matchgrid"

// Strategy selects the search order of the grid optimizer.
// The set is closed; SelectStrategy dispatches exhaustively over the
// device/orientation enums.
type Strategy uint8

// Strategy constants.
const (
	// Balanced searches column counts around sqrt(itemCount).
	Balanced Strategy = iota

	// ColumnsFirst biases the window toward more columns. Used for
	// mobile landscape where horizontal space dominates.
	ColumnsFirst

	// RowsFirst enumerates row counts around sqrt(itemCount) and derives
	// columns. Used for mobile portrait where vertical space dominates.
	RowsFirst
)

// String returns a human-readable name for the strategy.
func (s Strategy) String() string {
	switch s {
	case Balanced:
		return "Balanced"
	case ColumnsFirst:
		return "ColumnsFirst"
	case RowsFirst:
		return "RowsFirst"
	default:
		return "Unknown"
	}
}

// SelectStrategy picks the search strategy for a device class and
// orientation.
func SelectStrategy(device matchgrid.DeviceClass, orient matchgrid.Orientation) Strategy {
	switch device {
	case matchgrid.Mobile:
		if orient == matchgrid.Portrait {
			return RowsFirst
		}
		return ColumnsFirst
	case matchgrid.Tablet, matchgrid.Desktop:
		return Balanced
	default:
		return Balanced
	}
}
