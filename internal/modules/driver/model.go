// README: Driver directory types.
package driver

import (
	"time"

	"hmarket/internal/types"
)

// Info is what the directory knows about a courier. Drivers are accounts in
// the identity system; only availability, zone and live position live here.
type Info struct {
	ID          types.ID
	Zone        string
	IsAvailable bool
	Position    *types.Point
	UpdatedAt   time.Time
}
