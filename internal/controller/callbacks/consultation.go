package callbacks

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/consultation_bot/internal/controller/callbacks/common"
	"github.com/Freeeeeet/consultation_bot/internal/controller/state"
	"github.com/Freeeeeet/consultation_bot/internal/notify"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// handleAnswer переводит исследователя в ввод первого ответа на вопрос
func (h *Handler) handleAnswer(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	consultationID, err := notify.ParseAnswerCallbackData(callback.Data)
	if err != nil {
		h.logger.Error("Failed to parse answer callback", zap.Error(err), zap.String("data", callback.Data))
		common.AnswerCallbackAlert(ctx, b, callback.ID, common.ErrorMessage(common.ErrInvalidFormat))
		return
	}

	chatID, err := common.ChatIDFromCallback(callback)
	if err != nil {
		common.AnswerCallbackAlert(ctx, b, callback.ID, common.ErrorMessage(err))
		return
	}

	researcher, err := h.researcherService.GetByTelegramID(ctx, callback.From.ID)
	if err != nil {
		h.logger.Error("Failed to get researcher in answer callback", zap.Error(err), zap.Int64("telegram_id", callback.From.ID))
		common.AnswerCallbackAlert(ctx, b, callback.ID, common.ErrorMessage(err))
		return
	}
	if researcher == nil {
		common.AnswerCallbackAlert(ctx, b, callback.ID, common.ErrorMessage(common.ErrNotResearcher))
		return
	}

	h.stateManager.Begin(callback.From.ID, state.StateAwaitingAnswer, map[string]interface{}{
		state.DataConsultationID: consultationID,
	})

	common.AnswerCallback(ctx, b, callback.ID, "")
	common.RemoveKeyboard(ctx, b, callback)

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("✍️ Напишите первый ответ на вопрос #%d одним сообщением.\n\nОтмена: /cancel", consultationID),
	}); err != nil {
		h.logger.Error("Failed to send answer prompt", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// handleSelect фиксирует выбор исследователя пользователем
func (h *Handler) handleSelect(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	consultationID, researcherID, err := notify.ParseSelectCallbackData(callback.Data)
	if err != nil {
		h.logger.Error("Failed to parse select callback", zap.Error(err), zap.String("data", callback.Data))
		common.AnswerCallbackAlert(ctx, b, callback.ID, common.ErrorMessage(common.ErrInvalidFormat))
		return
	}

	user, err := h.userService.GetByTelegramID(ctx, callback.From.ID)
	if err != nil {
		h.logger.Error("Failed to get user in select callback", zap.Error(err), zap.Int64("telegram_id", callback.From.ID))
		common.AnswerCallbackAlert(ctx, b, callback.ID, common.ErrorMessage(err))
		return
	}
	if user == nil {
		common.AnswerCallbackAlert(ctx, b, callback.ID, "❌ Пользователь не найден. Используйте /start")
		return
	}

	if err := h.consultationService.SelectResearcher(ctx, consultationID, user.ID, researcherID); err != nil {
		h.logger.Info("Select researcher rejected",
			zap.Int64("consultation_id", consultationID),
			zap.Int64("researcher_id", researcherID),
			zap.Error(err))
		common.AnswerCallbackAlert(ctx, b, callback.ID, common.ErrorMessage(err))
		return
	}

	common.AnswerCallback(ctx, b, callback.ID, "✅ Исследователь выбран")
	common.RemoveKeyboard(ctx, b, callback)

	chatID, err := common.ChatIDFromCallback(callback)
	if err != nil {
		return
	}
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("💬 Разговор по вопросу #%d начат. Пишите сюда, сообщения будут переданы исследователю.\n\nЗавершить: /finish", consultationID),
	}); err != nil {
		h.logger.Error("Failed to send selection confirmation", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
