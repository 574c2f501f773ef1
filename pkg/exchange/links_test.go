package exchange

import (
	"testing"

	"position-monitor/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLink(t *testing.T) {
	tests := []struct {
		exchange string
		symbol   string
		want     string
	}{
		{common.EXCHANGE_BYBIT, "btcusdt", "https://www.bybit.com/trade/usdt/BTCUSDT"},
		{common.EXCHANGE_BINANCE, "ETHUSDT", "https://www.binance.com/en/futures/ETHUSDT"},
		{common.EXCHANGE_BINGX, "SOLUSDT", "https://bingx.com/en/perpetual/SOL-USDT"},
		{common.EXCHANGE_MEXC, "SOLUSDT", "https://www.mexc.com/ru-RU/futures/SOL_USDT?type=linear_swap"},
		{"mexc", "BTCUSDC", "https://www.mexc.com/ru-RU/futures/BTCUSDC?type=linear_swap"},
	}

	for _, tt := range tests {
		t.Run(tt.exchange+"_"+tt.symbol, func(t *testing.T) {
			got, ok := BuildLink(tt.exchange, tt.symbol)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := BuildLink("KRAKEN", "BTCUSDT")
	assert.False(t, ok)
}

func TestLinks(t *testing.T) {
	links := Links("BTCUSDT")
	require.Len(t, links, 4)
	assert.Equal(t, common.EXCHANGE_BYBIT, links[0].Exchange)
	assert.Equal(t, "https://bingx.com/en/perpetual/BTC-USDT", links[2].URL)
}
