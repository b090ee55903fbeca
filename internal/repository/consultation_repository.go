package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/model"
)

const consultationColumns = `id, user_id, question, cost, status, timeout_at, selected_researcher_id, created_at, updated_at, finished_at`

type ConsultationRepository struct {
	db DBTX
}

func NewConsultationRepository(db DBTX) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConsultation(row scanner) (*model.Consultation, error) {
	var c model.Consultation
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Question,
		&c.Cost,
		&c.Status,
		&c.TimeoutAt,
		&c.SelectedResearcherID,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create создаёт новую консультацию
func (r *ConsultationRepository) Create(ctx context.Context, c *model.Consultation) error {
	query := `
		INSERT INTO consultations (user_id, question, cost, status, timeout_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, c.UserID, c.Question, c.Cost, c.Status, c.TimeoutAt).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create consultation: %w", err)
	}

	return nil
}

// GetByID получает консультацию по ID
func (r *ConsultationRepository) GetByID(ctx context.Context, id int64) (*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`

	c, err := scanConsultation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get consultation by id: %w", err)
	}
	return c, nil
}

// GetForUpdate получает консультацию и блокирует строку до конца транзакции
func (r *ConsultationRepository) GetForUpdate(ctx context.Context, id int64) (*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1 FOR UPDATE`

	c, err := scanConsultation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get consultation for update: %w", err)
	}
	return c, nil
}

// FindDue получает консультации с истёкшим дедлайном в заданных статусах
func (r *ConsultationRepository) FindDue(ctx context.Context, now time.Time, statuses []model.ConsultationStatus, limit int) ([]*model.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE status = ANY($1) AND timeout_at IS NOT NULL AND timeout_at <= $2
		ORDER BY timeout_at ASC, id ASC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, statusStrings(statuses), now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due consultations: %w", err)
	}
	defer rows.Close()

	return collectConsultations(rows)
}

// UpdateStatus переводит консультацию из expected в status
func (r *ConsultationRepository) UpdateStatus(ctx context.Context, id int64, expected, status model.ConsultationStatus, timeoutAt *time.Time) error {
	query := `
		UPDATE consultations
		SET status = $3,
		    timeout_at = $4,
		    updated_at = now(),
		    finished_at = CASE WHEN $5 THEN now() ELSE finished_at END
		WHERE id = $1 AND status = $2
	`

	tag, err := r.db.Exec(ctx, query, id, expected, status, timeoutAt, status.IsTerminal())
	if err != nil {
		return fmt.Errorf("update consultation status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}

	return nil
}

// SetSelectedResearcher фиксирует выбор исследователя и переводит консультацию в IN_PROGRESS
func (r *ConsultationRepository) SetSelectedResearcher(ctx context.Context, id int64, expected model.ConsultationStatus, researcherID int64, timeoutAt time.Time) error {
	query := `
		UPDATE consultations
		SET status = $3, selected_researcher_id = $4, timeout_at = $5, updated_at = now()
		WHERE id = $1 AND status = $2
	`

	tag, err := r.db.Exec(ctx, query, id, expected, model.ConsultationStatusInProgress, researcherID, timeoutAt)
	if err != nil {
		return fmt.Errorf("set selected researcher: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}

	return nil
}

// ListByUser получает последние консультации пользователя
func (r *ConsultationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list consultations by user: %w", err)
	}
	defer rows.Close()

	return collectConsultations(rows)
}

// GetActiveByUser получает идущий разговор пользователя
func (r *ConsultationRepository) GetActiveByUser(ctx context.Context, userID int64) (*model.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE user_id = $1 AND status = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`

	c, err := scanConsultation(r.db.QueryRow(ctx, query, userID, model.ConsultationStatusInProgress))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active consultation by user: %w", err)
	}
	return c, nil
}

// GetActiveByResearcher получает идущий разговор исследователя
func (r *ConsultationRepository) GetActiveByResearcher(ctx context.Context, researcherID int64) (*model.Consultation, error) {
	query := `
		SELECT ` + consultationColumns + `
		FROM consultations
		WHERE selected_researcher_id = $1 AND status = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`

	c, err := scanConsultation(r.db.QueryRow(ctx, query, researcherID, model.ConsultationStatusInProgress))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active consultation by researcher: %w", err)
	}
	return c, nil
}

type rowsScanner interface {
	scanner
	Next() bool
	Err() error
}

func collectConsultations(rows rowsScanner) ([]*model.Consultation, error) {
	var consultations []*model.Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consultation: %w", err)
		}
		consultations = append(consultations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consultations: %w", err)
	}
	return consultations, nil
}

func statusStrings(statuses []model.ConsultationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
