package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/model"
)

type AssignmentRepository struct {
	db DBTX
}

func NewAssignmentRepository(db DBTX) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// CreateBatch создаёт по записи на каждого исследователя, получившего вопрос
func (r *AssignmentRepository) CreateBatch(ctx context.Context, consultationID int64, researcherIDs []int64) error {
	query := `
		INSERT INTO consultation_researchers (consultation_id, researcher_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT (consultation_id, researcher_id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, consultationID, researcherIDs); err != nil {
		return fmt.Errorf("create assignments: %w", err)
	}
	return nil
}

// FindByConsultation получает актуальный список рассылок вместе с чатами исследователей
func (r *AssignmentRepository) FindByConsultation(ctx context.Context, consultationID int64) ([]*model.ConsultationResearcher, error) {
	query := `
		SELECT cr.consultation_id, cr.researcher_id, cr.first_answer, cr.answered_at, cr.created_at, r.chat_id
		FROM consultation_researchers cr
		JOIN researchers r ON r.id = cr.researcher_id
		WHERE cr.consultation_id = $1
		ORDER BY cr.researcher_id ASC
	`

	rows, err := r.db.Query(ctx, query, consultationID)
	if err != nil {
		return nil, fmt.Errorf("find assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*model.ConsultationResearcher
	for rows.Next() {
		var a model.ConsultationResearcher
		err := rows.Scan(
			&a.ConsultationID,
			&a.ResearcherID,
			&a.FirstAnswer,
			&a.AnsweredAt,
			&a.CreatedAt,
			&a.ChatID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}

	return assignments, nil
}

// SetFirstAnswer сохраняет первый ответ исследователя
func (r *AssignmentRepository) SetFirstAnswer(ctx context.Context, consultationID, researcherID int64, answer string, at time.Time) error {
	query := `
		UPDATE consultation_researchers
		SET first_answer = $3, answered_at = $4
		WHERE consultation_id = $1 AND researcher_id = $2 AND first_answer IS NULL
	`

	tag, err := r.db.Exec(ctx, query, consultationID, researcherID, answer, at)
	if err != nil {
		return fmt.Errorf("set first answer: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}

	return nil
}
