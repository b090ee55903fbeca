package controller

import (
	"context"

	"github.com/Freeeeeet/consultation_bot/internal/clock"
	"github.com/Freeeeeet/consultation_bot/internal/controller/callbacks"
	"github.com/Freeeeeet/consultation_bot/internal/controller/handlers"
	"github.com/Freeeeeet/consultation_bot/internal/controller/state"
	"github.com/Freeeeeet/consultation_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type BotController struct {
	bot             *bot.Bot
	handlers        *handlers.Handlers
	callbackHandler *callbacks.Handler
	logger          *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	userService *service.UserService,
	researcherService *service.ResearcherService,
	consultationService *service.ConsultationService,
	clk clock.Clock,
	logger *zap.Logger,
) *BotController {
	// Создаём менеджер состояний
	stateManager := state.NewManager()

	cmdHandlers := handlers.NewHandlers(
		userService,
		researcherService,
		consultationService,
		stateManager,
		clk,
		logger,
	)

	callbackHandler := callbacks.NewHandler(
		userService,
		researcherService,
		consultationService,
		stateManager,
		logger,
	)

	return &BotController{
		bot:             botInstance,
		handlers:        cmdHandlers,
		callbackHandler: callbackHandler,
		logger:          logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	// Команды пользователя
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handlers.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handlers.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/balance", bot.MatchTypeExact, c.handlers.HandleBalance)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/ask", bot.MatchTypePrefix, c.handlers.HandleAsk)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/my", bot.MatchTypeExact, c.handlers.HandleMy)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/finish", bot.MatchTypeExact, c.handlers.HandleFinish)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypeExact, c.handlers.HandleCancel)

	// Команды для исследователей
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/researcher", bot.MatchTypeExact, c.handlers.HandleBecomeResearcher)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/online", bot.MatchTypeExact, c.handlers.HandleOnline)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/offline", bot.MatchTypeExact, c.handlers.HandleOffline)

	// Обработчик текстовых сообщений (диалоги и переписка в консультации)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, c.handlers.HandleTextMessage)

	// Обработчик нажатий на inline кнопки
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, c.callbackHandler.HandleCallbackQuery)

	// Устанавливаем меню команд
	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "ask", Description: "❓ Задать вопрос исследователям"},
		{Command: "my", Description: "📋 Мои консультации"},
		{Command: "finish", Description: "🏁 Завершить разговор"},
		{Command: "balance", Description: "⚡️ Баланс энергии"},
		{Command: "help", Description: "📚 Справка по командам"},
		{Command: "researcher", Description: "🎓 Стать исследователем"},
		{Command: "online", Description: "🟢 Принимать вопросы (исследователь)"},
		{Command: "offline", Description: "⚫️ Не принимать вопросы (исследователь)"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота и блокирует до отмены контекста
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
}
