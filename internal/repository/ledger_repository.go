package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/consultation_bot/internal/model"
)

type LedgerRepository struct {
	db DBTX
}

func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Insert записывает движение энергии. Повтор того же вида по консультации игнорируется.
func (r *LedgerRepository) Insert(ctx context.Context, e *model.LedgerEntry) (bool, error) {
	query := `
		INSERT INTO energy_ledger (id, consultation_id, kind, user_id, researcher_id, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (consultation_id, kind) DO NOTHING
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query, e.ID, e.ConsultationID, e.Kind, e.UserID, e.ResearcherID, e.Amount).
		Scan(&e.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}

	return true, nil
}

// ListByConsultation получает историю движений энергии по консультации
func (r *LedgerRepository) ListByConsultation(ctx context.Context, consultationID int64) ([]*model.LedgerEntry, error) {
	query := `
		SELECT id, consultation_id, kind, user_id, researcher_id, amount, created_at
		FROM energy_ledger
		WHERE consultation_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, consultationID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		err := rows.Scan(&e.ID, &e.ConsultationID, &e.Kind, &e.UserID, &e.ResearcherID, &e.Amount, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}

	return entries, nil
}
