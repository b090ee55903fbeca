package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/controller/callbacks/common/formatting"
	"github.com/Freeeeeet/consultation_bot/internal/controller/state"
	"github.com/Freeeeeet/consultation_bot/internal/model"
	"github.com/Freeeeeet/consultation_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleAsk обрабатывает команду /ask. Без текста переводит пользователя в ввод вопроса.
func (h *Handlers) HandleAsk(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	question := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/ask"))
	if question == "" {
		if _, ok := h.requireUser(ctx, b, update); !ok {
			return
		}
		h.stateManager.Begin(update.Message.From.ID, state.StateAwaitingQuestion, nil)
		h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
			"✍️ Напишите ваш вопрос одним сообщением.\n\nСтоимость: %d ⚡️\nОтмена: /cancel",
			h.consultationService.Cost(),
		))
		return
	}

	h.askQuestion(ctx, b, update, question)
}

func (h *Handlers) askQuestion(ctx context.Context, b *bot.Bot, update *models.Update, question string) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	consultation, err := h.consultationService.Ask(ctx, user.ID, question)
	if err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "ask", err)
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
		"📨 Вопрос #%d отправлен исследователям.\n\n"+
			"Списано: %d ⚡️\n"+
			"Ответы принимаются до %s. Если никто не ответит, энергия вернётся.",
		consultation.ID,
		consultation.Cost,
		formatting.FormatDateTime(*consultation.TimeoutAt),
	))
}

// HandleMy обрабатывает команду /my - последние консультации пользователя
func (h *Handlers) HandleMy(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	consultations, err := h.consultationService.ListUserConsultations(ctx, user.ID, MyConsultationsLimit)
	if err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "list consultations", err)
		return
	}

	if len(consultations) == 0 {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "📭 У вас пока нет консультаций.\n\nЗадать вопрос: /ask")
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, FormatConsultationList(consultations, h.clock.Now()))
}

// HandleFinish обрабатывает команду /finish - досрочное завершение разговора
func (h *Handlers) HandleFinish(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	active, err := h.consultationService.ActiveForUser(ctx, user.ID)
	if err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "get active consultation", err)
		return
	}
	if active == nil {
		h.sendError(ctx, b, update.Message.Chat.ID, "ℹ️ У вас нет активного разговора.")
		return
	}

	// Уведомления о завершении получат обе стороны
	if err := h.consultationService.Finish(ctx, active.ID, user.ID); err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "finish consultation", err)
	}
}

// handleAnswerStep принимает первый ответ исследователя на выбранный вопрос
func (h *Handlers) handleAnswerStep(ctx context.Context, b *bot.Bot, update *models.Update) {
	telegramID := update.Message.From.ID

	consultationID, ok := h.stateManager.GetInt64(telegramID, state.DataConsultationID)
	if !ok {
		h.logger.Error("Missing consultation id for answer", zap.Int64("telegram_id", telegramID))
		h.stateManager.ClearState(telegramID)
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Ошибка: данные не найдены. Нажмите «Ответить» ещё раз.")
		return
	}

	researcher, ok := h.requireResearcher(ctx, b, update)
	if !ok {
		h.stateManager.ClearState(telegramID)
		return
	}

	err := h.consultationService.SubmitAnswer(ctx, consultationID, researcher.ID, update.Message.Text)
	if errors.Is(err, service.ErrEmptyAnswer) {
		// Даём попробовать ещё раз, состояние сохраняется
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Ответ не может быть пустым. Отмена: /cancel")
		return
	}
	h.stateManager.ClearState(telegramID)
	if err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "submit answer", err)
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
		"✅ Ответ на вопрос #%d отправлен. Если пользователь выберет вас, начнётся разговор.",
		consultationID,
	))
}

// relay пересылает сообщение собеседнику по активной консультации
func (h *Handlers) relay(ctx context.Context, b *bot.Bot, update *models.Update) {
	_, err := h.consultationService.Relay(ctx, update.Message.From.ID, update.Message.Text)
	if err == nil {
		return
	}
	if errors.Is(err, service.ErrNoActiveConsultation) {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "ℹ️ Нет активного разговора.\n\nЗадать вопрос: /ask\nСправка: /help")
		return
	}
	h.sendServiceError(ctx, b, update.Message.Chat.ID, "relay message", err)
}

// FormatConsultationList форматирует список консультаций для /my
func FormatConsultationList(consultations []*model.Consultation, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Последние %d %s:\n", len(consultations),
		formatting.PluralizeConsultations(int64(len(consultations)))))

	for _, c := range consultations {
		display := formatting.GetConsultationStatusDisplay(c.Status)
		sb.WriteString(fmt.Sprintf("\n%s #%d · %s\n", display.Emoji, c.ID, display.Text))
		sb.WriteString(truncate(c.Question, 80))
		sb.WriteString("\n")
		if !c.Status.IsTerminal() && c.TimeoutAt != nil {
			sb.WriteString(fmt.Sprintf("⏱ Осталось: %s\n", formatting.FormatRemaining(*c.TimeoutAt, now)))
		}
	}

	return sb.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
