package common

const (
	KEY_LAST_PRICE    = "last_price:%s"
	KEY_CIRCUIT_LIMIT = "circuit_limit:%s"
	KEY_HOLIDAYS      = "market_holidays"
)

const (
	EXCHANGE_NSE = "NSE"
	SEGMENT_EQ   = "EQ"
)

const (
	EVENT_PORTFOLIO_SAVED   = "PORTFOLIO_SAVED"
	EVENT_PORTFOLIO_CHANGED = "PORTFOLIO_CHANGED"
)

const (
	HEADER_USER_ID = "X-User-ID"
	ANONYMOUS_USER = ""
)
