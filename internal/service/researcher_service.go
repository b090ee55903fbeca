package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/consultation_bot/internal/model"
	"github.com/Freeeeeet/consultation_bot/internal/repository"
	"go.uber.org/zap"
)

const DefaultRecommendScore = 100

type ResearcherService struct {
	researcherRepo repository.ResearcherStore
	logger         *zap.Logger
}

func NewResearcherService(researcherRepo repository.ResearcherStore, logger *zap.Logger) *ResearcherService {
	return &ResearcherService{
		researcherRepo: researcherRepo,
		logger:         logger,
	}
}

// Register делает пользователя Telegram исследователем. Повторная регистрация возвращает существующую запись.
func (s *ResearcherService) Register(ctx context.Context, telegramID, chatID int64, displayName string) (*model.Researcher, bool, error) {
	existing, err := s.researcherRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, fmt.Errorf("check existing researcher: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	researcher := &model.Researcher{
		TelegramID:     telegramID,
		ChatID:         chatID,
		DisplayName:    displayName,
		RecommendScore: DefaultRecommendScore,
		Status:         model.ResearcherStatusOffline,
	}
	if err := s.researcherRepo.Create(ctx, researcher); err != nil {
		return nil, false, fmt.Errorf("create researcher: %w", err)
	}

	s.logger.Info("Researcher registered",
		zap.Int64("researcher_id", researcher.ID),
		zap.Int64("telegram_id", telegramID))

	return researcher, true, nil
}

// GetByTelegramID получает исследователя по Telegram ID
func (s *ResearcherService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.Researcher, error) {
	return s.researcherRepo.GetByTelegramID(ctx, telegramID)
}

// SetOnline включает приём новых вопросов
func (s *ResearcherService) SetOnline(ctx context.Context, telegramID int64) (*model.Researcher, error) {
	return s.setStatus(ctx, telegramID, model.ResearcherStatusOnline)
}

// SetOffline выключает приём новых вопросов
func (s *ResearcherService) SetOffline(ctx context.Context, telegramID int64) (*model.Researcher, error) {
	return s.setStatus(ctx, telegramID, model.ResearcherStatusOffline)
}

func (s *ResearcherService) setStatus(ctx context.Context, telegramID int64, status model.ResearcherStatus) (*model.Researcher, error) {
	researcher, err := s.researcherRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get researcher: %w", err)
	}
	if researcher == nil {
		return nil, ErrResearcherNotFound
	}
	// Во время разговора статус BUSY снимает только завершение консультации
	if researcher.Status == model.ResearcherStatusBusy && status == model.ResearcherStatusOnline {
		return researcher, nil
	}

	if err := s.researcherRepo.SetStatus(ctx, researcher.ID, status); err != nil {
		return nil, err
	}
	researcher.Status = status

	s.logger.Info("Researcher status changed",
		zap.Int64("researcher_id", researcher.ID),
		zap.String("status", string(status)))

	return researcher, nil
}
