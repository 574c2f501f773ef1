package common

const (
	KEY_BOT_RECIPIENTS = "bot_recipients"
)

const (
	EXCHANGE_BYBIT   = "BYBIT"
	EXCHANGE_BINANCE = "BINANCE"
	EXCHANGE_BINGX   = "BINGX"
	EXCHANGE_MEXC    = "MEXC"
)

func GetExchangeList() []string {
	return []string{
		EXCHANGE_BYBIT,
		EXCHANGE_BINANCE,
		EXCHANGE_BINGX,
		EXCHANGE_MEXC,
	}
}

const (
	KEY_LOG_HOOK_SEND_ALERT = "send_alert"
)
