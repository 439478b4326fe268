package service

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender adapts *tgbotapi.BotAPI to the domain interface.
type TelegramSender struct {
	*tgbotapi.BotAPI
}

func NewTelegramSender(bot *tgbotapi.BotAPI) *TelegramSender {
	return &TelegramSender{BotAPI: bot}
}

func (s *TelegramSender) GetSelf() tgbotapi.User {
	return s.Self
}

func (s *TelegramSender) StopReceivingUpdates() {
	s.BotAPI.StopReceivingUpdates()
}
