package common

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AnswerCallback отвечает на callback query (без alert)
func AnswerCallback(ctx context.Context, b *bot.Bot, callbackID string, text string) {
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       false,
	})
}

// AnswerCallbackAlert отвечает на callback query с alert (всплывающее окно)
func AnswerCallbackAlert(ctx context.Context, b *bot.Bot, callbackID string, text string) {
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
}

// ChatIDFromCallback возвращает чат, из которого нажата кнопка
func ChatIDFromCallback(callback *models.CallbackQuery) (int64, error) {
	if callback.Message.Message != nil {
		return callback.Message.Message.Chat.ID, nil
	}
	if callback.Message.InaccessibleMessage != nil {
		return callback.Message.InaccessibleMessage.Chat.ID, nil
	}
	return 0, ErrNoMessage
}

// RemoveKeyboard убирает inline кнопки у сообщения, чтобы их нельзя было нажать повторно
func RemoveKeyboard(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	msg := callback.Message.Message
	if msg == nil {
		return
	}
	b.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
	})
}
