package handlers

import (
	"github.com/Freeeeeet/consultation_bot/internal/clock"
	"github.com/Freeeeeet/consultation_bot/internal/controller/state"
	"github.com/Freeeeeet/consultation_bot/internal/service"
	"go.uber.org/zap"
)

// Сколько последних консультаций показывает /my
const MyConsultationsLimit = 10

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	userService         *service.UserService
	researcherService   *service.ResearcherService
	consultationService *service.ConsultationService
	stateManager        *state.Manager
	clock               clock.Clock
	logger              *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	userService *service.UserService,
	researcherService *service.ResearcherService,
	consultationService *service.ConsultationService,
	stateManager *state.Manager,
	clk clock.Clock,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		userService:         userService,
		researcherService:   researcherService,
		consultationService: consultationService,
		stateManager:        stateManager,
		clock:               clk,
		logger:              logger,
	}
}
