package telegram

import (
	"gopkg.in/telebot.v3"
)

// TelebotAdapter delivers operator messages through a running telebot.Bot.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage posts text to chatID. Without options link previews are off.
func (a *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	opts := telebot.SendOptions{DisableWebPagePreview: true}
	if options != nil {
		opts = *options
	}
	if _, err := a.bot.Send(telebot.ChatID(chatID), text, &opts); err != nil {
		return err
	}
	return nil
}
