package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/consultation_bot/internal/model"
)

const userColumns = `id, telegram_id, chat_id, username, first_name, last_name, language_code, energy_balance, created_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row scanner) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.ChatID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.LanguageCode,
		&user.EnergyBalance,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create создаёт нового пользователя
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (telegram_id, chat_id, username, first_name, last_name, language_code, energy_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		user.TelegramID,
		user.ChatID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.LanguageCode,
		user.EnergyBalance,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}

	return user, nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

// Update обновляет профиль пользователя. Баланс меняется только через AdjustBalance.
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET chat_id = $2, username = $3, first_name = $4, last_name = $5, language_code = $6
		WHERE id = $1
	`

	tag, err := r.db.Exec(
		ctx, query,
		user.ID,
		user.ChatID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.LanguageCode,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AdjustBalance изменяет баланс энергии и возвращает новое значение
func (r *UserRepository) AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	query := `
		UPDATE users
		SET energy_balance = energy_balance + $2
		WHERE id = $1 AND energy_balance + $2 >= 0
		RETURNING energy_balance
	`

	var balance int64
	err := r.db.QueryRow(ctx, query, id, delta).Scan(&balance)
	if err != nil {
		if IsNotFound(err) {
			// Либо нет пользователя, либо не хватает энергии
			exists, existsErr := r.GetByID(ctx, id)
			if existsErr != nil {
				return 0, existsErr
			}
			if exists == nil {
				return 0, ErrNotFound
			}
			return 0, ErrInsufficientBalance
		}
		return 0, fmt.Errorf("adjust user balance: %w", err)
	}

	return balance, nil
}
