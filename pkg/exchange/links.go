// Package exchange builds futures trading deeplinks for supported exchanges.
package exchange

import (
	"fmt"
	"strings"

	"position-monitor/pkg/common"
)

// Link is a single exchange deeplink.
type Link struct {
	Exchange string `json:"exchange"`
	URL      string `json:"url"`
}

// BuildLink returns the futures page for symbol on exchange, or false if the
// exchange is unknown.
func BuildLink(exchange, symbol string) (string, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	switch strings.ToUpper(exchange) {
	case common.EXCHANGE_BYBIT:
		return fmt.Sprintf("https://www.bybit.com/trade/usdt/%s", symbol), true
	case common.EXCHANGE_BINANCE:
		return fmt.Sprintf("https://www.binance.com/en/futures/%s", symbol), true
	case common.EXCHANGE_BINGX:
		return fmt.Sprintf("https://bingx.com/en/perpetual/%s", quoteSeparated(symbol, "-")), true
	case common.EXCHANGE_MEXC:
		return fmt.Sprintf("https://www.mexc.com/ru-RU/futures/%s?type=linear_swap", quoteSeparated(symbol, "_")), true
	}
	return "", false
}

// Links returns deeplinks for every supported exchange in a stable order.
func Links(symbol string) []Link {
	exchanges := common.GetExchangeList()
	links := make([]Link, 0, len(exchanges))
	for _, ex := range exchanges {
		url, ok := BuildLink(ex, symbol)
		if !ok {
			continue
		}
		links = append(links, Link{Exchange: ex, URL: url})
	}
	return links
}

// quoteSeparated turns BTCUSDT into BTC<sep>USDT.
func quoteSeparated(symbol, sep string) string {
	if strings.HasSuffix(symbol, "USDT") && len(symbol) > len("USDT") {
		return strings.TrimSuffix(symbol, "USDT") + sep + "USDT"
	}
	return symbol
}
