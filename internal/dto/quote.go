package dto

// PriceTicksResponse is the price ticks endpoint payload. Each tick is
// [timestamp, open, high, low, close, volume].
type PriceTicksResponse struct {
	Data struct {
		Ticks map[string][][]any `json:"ticks"`
	} `json:"data"`
}

// TickCloseIndex is the position of the close price inside a tick.
const TickCloseIndex = 4

// LatestClose returns the close of the newest tick for ticker.
func (r PriceTicksResponse) LatestClose(ticker string) (float64, bool) {
	ticks := r.Data.Ticks[ticker]
	if len(ticks) == 0 {
		return 0, false
	}
	last := ticks[len(ticks)-1]
	if len(last) <= TickCloseIndex {
		return 0, false
	}
	price, ok := last[TickCloseIndex].(float64)
	if !ok || price <= 0 {
		return 0, false
	}
	return price, true
}

type Holiday struct {
	HolidayDate string `json:"holidayDate"`
	Purpose     string `json:"purpose"`
}

type HolidaysResponse struct {
	Data []Holiday `json:"data"`
}

type SearchStock struct {
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	LastPrice    float64  `json:"last_price"`
	UpperCircuit *float64 `json:"upper_circuit"`
	LowerCircuit *float64 `json:"lower_circuit"`
}

type SearchResponse struct {
	Stocks []SearchStock `json:"stocks"`
}

// CircuitLimit holds the circuit band of a ticker. Upper and Lower are the
// percentage distance from the last price.
type CircuitLimit struct {
	Ticker     string  `json:"ticker"`
	Upper      float64 `json:"upper"`
	Lower      float64 `json:"lower"`
	UpperPrice float64 `json:"upper_price"`
	LowerPrice float64 `json:"lower_price"`
	LastPrice  float64 `json:"last_price"`
}

// CircuitPercentage is the distance of circuitPrice from price in percent.
func CircuitPercentage(price, circuitPrice float64) float64 {
	if price == 0 {
		return 0
	}
	return (circuitPrice - price) / price * 100
}
