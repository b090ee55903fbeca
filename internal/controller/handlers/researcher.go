package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/consultation_bot/internal/controller/callbacks/common/formatting"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleBecomeResearcher обрабатывает команду /researcher
func (h *Handlers) HandleBecomeResearcher(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	from := update.Message.From
	displayName := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if displayName == "" {
		displayName = from.Username
	}

	researcher, created, err := h.researcherService.Register(ctx, from.ID, update.Message.Chat.ID, displayName)
	if err != nil {
		h.logger.Error("Failed to register researcher", zap.Int64("telegram_id", from.ID), zap.Error(err))
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Не удалось зарегистрироваться. Попробуйте позже.")
		return
	}

	if !created {
		display := formatting.GetResearcherStatusDisplay(researcher.Status)
		h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
			"ℹ️ Вы уже исследователь.\n\nСтатус: %s %s\nРейтинг: %d\nЗаработано: %d ⚡️",
			display.Emoji, display.Text, researcher.RecommendScore, researcher.EarnedEnergy,
		))
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID,
		"🎓 Вы зарегистрированы как исследователь!\n\n"+
			"Включите приём вопросов командой /online.\n"+
			"На каждый вопрос нужно успеть дать первый ответ, иначе рейтинг снизится.")
}

// HandleOnline обрабатывает команду /online
func (h *Handlers) HandleOnline(ctx context.Context, b *bot.Bot, update *models.Update) {
	if _, ok := h.requireResearcher(ctx, b, update); !ok {
		return
	}

	researcher, err := h.researcherService.SetOnline(ctx, update.Message.From.ID)
	if err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "set online", err)
		return
	}

	display := formatting.GetResearcherStatusDisplay(researcher.Status)
	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf("%s Статус: %s", display.Emoji, display.Text))
}

// HandleOffline обрабатывает команду /offline
func (h *Handlers) HandleOffline(ctx context.Context, b *bot.Bot, update *models.Update) {
	if _, ok := h.requireResearcher(ctx, b, update); !ok {
		return
	}

	researcher, err := h.researcherService.SetOffline(ctx, update.Message.From.ID)
	if err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "set offline", err)
		return
	}

	display := formatting.GetResearcherStatusDisplay(researcher.Status)
	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf("%s Статус: %s\n\nНовые вопросы приходить не будут.", display.Emoji, display.Text))
}
