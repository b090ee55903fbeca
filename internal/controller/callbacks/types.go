package callbacks

import (
	"github.com/Freeeeeet/consultation_bot/internal/controller/state"
	"github.com/Freeeeeet/consultation_bot/internal/service"
	"go.uber.org/zap"
)

// Handler обрабатывает нажатия на inline кнопки уведомлений
type Handler struct {
	userService         *service.UserService
	researcherService   *service.ResearcherService
	consultationService *service.ConsultationService
	stateManager        *state.Manager
	logger              *zap.Logger
}

// NewHandler создаёт новый обработчик callbacks с зависимостями
func NewHandler(
	userService *service.UserService,
	researcherService *service.ResearcherService,
	consultationService *service.ConsultationService,
	stateManager *state.Manager,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userService:         userService,
		researcherService:   researcherService,
		consultationService: consultationService,
		stateManager:        stateManager,
		logger:              logger,
	}
}
