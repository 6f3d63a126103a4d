package idhash

import (
	"fmt"

	"rotation-engine/internal/dates"
)

// ComputeTradeID builds the composite trade identifier.
// Format: <profile>_<YYYYMMDD>_<counter:04d>
// The counter is per run and strictly increasing, the profile disambiguates
// runs, and the entry date keeps IDs readable in downstream tools.
func ComputeTradeID(profileName string, entryDate dates.Date, counter int) string {
	return fmt.Sprintf("%s_%s_%04d", profileName, entryDate.Compact(), counter)
}
