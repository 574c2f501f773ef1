package dto

// BybitTickerResponse is the body of GET /v5/market/tickers.
type BybitTickerResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string        `json:"category"`
		List     []BybitTicker `json:"list"`
	} `json:"result"`
	Time int64 `json:"time"`
}

type BybitTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	MarkPrice string `json:"markPrice"`
}
