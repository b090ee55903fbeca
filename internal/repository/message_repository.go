package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/consultation_bot/internal/model"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert сохраняет сообщение переписки
func (r *MessageRepository) Insert(ctx context.Context, m *model.ConsultationMessage) error {
	query := `
		INSERT INTO consultation_messages (consultation_id, sender, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	if err := r.db.QueryRow(ctx, query, m.ConsultationID, m.Sender, m.Text).Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("insert consultation message: %w", err)
	}
	return nil
}

// ListByConsultation получает переписку по консультации
func (r *MessageRepository) ListByConsultation(ctx context.Context, consultationID int64) ([]*model.ConsultationMessage, error) {
	query := `
		SELECT id, consultation_id, sender, text, created_at
		FROM consultation_messages
		WHERE consultation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, consultationID)
	if err != nil {
		return nil, fmt.Errorf("list consultation messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.ConsultationMessage
	for rows.Next() {
		var m model.ConsultationMessage
		if err := rows.Scan(&m.ID, &m.ConsultationID, &m.Sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan consultation message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consultation messages: %w", err)
	}

	return messages, nil
}
