package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one exchange rate observation for a currency pair. Pair is the
// six-letter concatenation of base and quote currency, e.g. "EURUSD".
type Quote struct {
	Pair      string
	AsOf      time.Time
	Rate      decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}
