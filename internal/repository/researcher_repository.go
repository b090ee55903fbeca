package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/consultation_bot/internal/model"
)

const researcherColumns = `id, telegram_id, chat_id, display_name, recommend_score, status, earned_energy, created_at`

type ResearcherRepository struct {
	db DBTX
}

func NewResearcherRepository(db DBTX) *ResearcherRepository {
	return &ResearcherRepository{db: db}
}

func scanResearcher(row scanner) (*model.Researcher, error) {
	var r model.Researcher
	err := row.Scan(
		&r.ID,
		&r.TelegramID,
		&r.ChatID,
		&r.DisplayName,
		&r.RecommendScore,
		&r.Status,
		&r.EarnedEnergy,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create регистрирует исследователя
func (r *ResearcherRepository) Create(ctx context.Context, researcher *model.Researcher) error {
	query := `
		INSERT INTO researchers (telegram_id, chat_id, display_name, recommend_score, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		researcher.TelegramID,
		researcher.ChatID,
		researcher.DisplayName,
		researcher.RecommendScore,
		researcher.Status,
	).Scan(&researcher.ID, &researcher.CreatedAt)
	if err != nil {
		return fmt.Errorf("create researcher: %w", err)
	}

	return nil
}

// GetByID получает исследователя по ID
func (r *ResearcherRepository) GetByID(ctx context.Context, id int64) (*model.Researcher, error) {
	query := `SELECT ` + researcherColumns + ` FROM researchers WHERE id = $1`

	researcher, err := scanResearcher(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get researcher by id: %w", err)
	}
	return researcher, nil
}

// GetForUpdate получает исследователя и блокирует строку
func (r *ResearcherRepository) GetForUpdate(ctx context.Context, id int64) (*model.Researcher, error) {
	query := `SELECT ` + researcherColumns + ` FROM researchers WHERE id = $1 FOR UPDATE`

	researcher, err := scanResearcher(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get researcher for update: %w", err)
	}
	return researcher, nil
}

// GetByTelegramID получает исследователя по Telegram ID
func (r *ResearcherRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.Researcher, error) {
	query := `SELECT ` + researcherColumns + ` FROM researchers WHERE telegram_id = $1`

	researcher, err := scanResearcher(r.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get researcher by telegram id: %w", err)
	}
	return researcher, nil
}

// ListOnline получает всех исследователей, готовых принимать вопросы
func (r *ResearcherRepository) ListOnline(ctx context.Context) ([]*model.Researcher, error) {
	query := `
		SELECT ` + researcherColumns + `
		FROM researchers
		WHERE status = $1
		ORDER BY recommend_score DESC, id ASC
	`

	rows, err := r.db.Query(ctx, query, model.ResearcherStatusOnline)
	if err != nil {
		return nil, fmt.Errorf("list online researchers: %w", err)
	}
	defer rows.Close()

	var researchers []*model.Researcher
	for rows.Next() {
		researcher, err := scanResearcher(rows)
		if err != nil {
			return nil, fmt.Errorf("scan researcher: %w", err)
		}
		researchers = append(researchers, researcher)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate researchers: %w", err)
	}

	return researchers, nil
}

// SetStatus обновляет статус исследователя
func (r *ResearcherRepository) SetStatus(ctx context.Context, id int64, status model.ResearcherStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE researchers SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set researcher status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DecrementScore уменьшает репутацию исследователя
func (r *ResearcherRepository) DecrementScore(ctx context.Context, id int64, amount int64, floor *int64) error {
	query := `
		UPDATE researchers
		SET recommend_score = CASE
			WHEN $3::bigint IS NULL THEN recommend_score - $2
			ELSE GREATEST(recommend_score - $2, $3::bigint)
		END
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, amount, floor)
	if err != nil {
		return fmt.Errorf("decrement researcher score: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AddEarnings начисляет исследователю энергию за консультацию
func (r *ResearcherRepository) AddEarnings(ctx context.Context, id int64, amount int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE researchers SET earned_energy = earned_energy + $2 WHERE id = $1`, id, amount)
	if err != nil {
		return fmt.Errorf("add researcher earnings: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
