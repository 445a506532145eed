// README: Common value objects shared across modules.
package types

// ID is an opaque identifier for orders, users and drivers.
type ID string

// Money is an amount in minor units (cents).
type Money struct {
	Amount   int64
	Currency string
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}
