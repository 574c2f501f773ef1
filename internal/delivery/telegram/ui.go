package telegram

import "gopkg.in/telebot.v3"

var (
	btnClosePosition        telebot.Btn = telebot.Btn{Unique: "btn_close_position"}
	btnConfirmClosePosition telebot.Btn = telebot.Btn{Unique: "btn_confirm_close_position"}
	btnDeleteMessage        telebot.Btn = telebot.Btn{Text: "🗑 Delete", Unique: "btn_delete_message"}
)

const (
	commonErrorInternal = "Something went wrong, please try again."
	commonErrorNotAdmin = "⛔ This command is only available to administrators."
)
