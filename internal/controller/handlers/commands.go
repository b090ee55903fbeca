package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/consultation_bot/internal/controller/state"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	user := update.Message.From

	// Регистрируем пользователя
	registeredUser, err := h.userService.RegisterUser(
		ctx,
		user.ID,
		update.Message.Chat.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.LanguageCode,
	)

	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err))
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка при регистрации. Попробуйте позже.")
		return
	}

	welcomeText := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Здесь можно задать вопрос о рынках исследователям и получить ответ.\n"+
			"Вопрос стоит %d ⚡️, ваш баланс: %d ⚡️\n\n"+
			"Если никто не ответит вовремя, энергия вернётся.\n\n"+
			"/ask - Задать вопрос\n"+
			"/my - Мои консультации\n"+
			"/balance - Баланс энергии\n"+
			"/help - Справка",
		registeredUser.FirstName,
		h.consultationService.Cost(),
		registeredUser.EnergyBalance,
	)

	h.sendMessage(ctx, b, update.Message.Chat.ID, welcomeText)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"Для пользователей:\n" +
		"/ask <вопрос> - Задать вопрос исследователям\n" +
		"/my - Мои консультации\n" +
		"/finish - Завершить текущий разговор\n" +
		"/balance - Баланс энергии\n" +
		"/cancel - Отменить текущий ввод\n\n" +
		"Для исследователей:\n" +
		"/researcher - Стать исследователем\n" +
		"/online - Принимать вопросы\n" +
		"/offline - Не принимать вопросы\n\n" +
		"Во время разговора просто пишите сообщения, бот передаст их собеседнику."

	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

// HandleBalance обрабатывает команду /balance
func (h *Handlers) HandleBalance(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
		"⚡️ Баланс: %d\n💰 Стоимость вопроса: %d",
		user.EnergyBalance,
		h.consultationService.Cost(),
	))
}

// HandleCancel обрабатывает команду /cancel - отмена текущего диалога
func (h *Handlers) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	telegramID := update.Message.From.ID
	currentState := h.stateManager.GetState(telegramID)

	if currentState == state.StateNone {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Нет активных операций для отмены.")
		return
	}

	// Очищаем состояние
	h.stateManager.ClearState(telegramID)

	h.sendMessage(ctx, b, update.Message.Chat.ID, "✅ Операция отменена.\n\nИспользуйте /help для просмотра доступных команд.")
}

// HandleTextMessage обрабатывает текстовые сообщения: сначала шаг диалога, затем переписка в консультации
func (h *Handlers) HandleTextMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	// Игнорируем команды (они обрабатываются другими handlers)
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	telegramID := update.Message.From.ID
	currentState := h.stateManager.GetState(telegramID)

	h.logger.Debug("HandleTextMessage called",
		zap.Int64("telegram_id", telegramID),
		zap.String("state", string(currentState)))

	switch currentState {
	case state.StateAwaitingQuestion:
		h.stateManager.ClearState(telegramID)
		h.askQuestion(ctx, b, update, update.Message.Text)
	case state.StateAwaitingAnswer:
		h.handleAnswerStep(ctx, b, update)
	case state.StateNone:
		h.relay(ctx, b, update)
	default:
		h.logger.Warn("Unknown state", zap.String("state", string(currentState)))
		h.stateManager.ClearState(telegramID)
	}
}
