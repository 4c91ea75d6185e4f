package telegram

import "gopkg.in/telebot.v3"

// Client sends operator-facing messages (permission prompts, digests, campaign reports).
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
