package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/consultation_bot/internal/model"
	"github.com/Freeeeeet/consultation_bot/internal/repository"
	"go.uber.org/zap"
)

type UserService struct {
	userRepo      repository.UserStore
	initialEnergy int64
	logger        *zap.Logger
}

func NewUserService(userRepo repository.UserStore, initialEnergy int64, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo:      userRepo,
		initialEnergy: initialEnergy,
		logger:        logger,
	}
}

// RegisterUser регистрирует или обновляет пользователя.
// Новый пользователь получает стартовый запас энергии.
func (s *UserService) RegisterUser(ctx context.Context, telegramID, chatID int64, username, firstName, lastName, languageCode string) (*model.User, error) {
	// Проверяем существует ли пользователь
	existingUser, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	// Если пользователь уже существует, обновляем данные
	if existingUser != nil {
		existingUser.ChatID = chatID
		existingUser.Username = username
		existingUser.FirstName = firstName
		existingUser.LastName = lastName
		existingUser.LanguageCode = languageCode

		if err := s.userRepo.Update(ctx, existingUser); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}

		s.logger.Info("User updated",
			zap.Int64("telegram_id", telegramID),
			zap.String("username", username),
		)

		return existingUser, nil
	}

	user := &model.User{
		TelegramID:    telegramID,
		ChatID:        chatID,
		Username:      username,
		FirstName:     firstName,
		LastName:      lastName,
		LanguageCode:  languageCode,
		EnergyBalance: s.initialEnergy,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
		zap.String("username", username),
		zap.Int64("energy", user.EnergyBalance),
	)

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.userRepo.GetByTelegramID(ctx, telegramID)
}
