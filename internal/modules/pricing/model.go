// README: Pricing inputs and computed totals.
package pricing

// Currency is the only currency the marketplace trades in.
const Currency = "EUR"

// taxRatePct is the VAT applied to the goods subtotal. The legacy platform
// carried a dormant 5.5% rate next to the live 20% one; customers were always
// charged 20%, so that is the rate kept here.
const taxRatePct = 20

// Delivery fees in cents, keyed by delivery mode. Business constants.
var deliveryFees = map[string]int64{
	"planned":     399,
	"express":     599,
	"outside_idf": 899,
}

type Item struct {
	UnitPrice int64 // cents
	Quantity  int
}

type Totals struct {
	Subtotal    int64
	DeliveryFee int64
	Taxes       int64
	Discounts   int64
	Total       int64
	Currency    string
}
