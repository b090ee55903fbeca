package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/consultation_bot/internal/model"
	"github.com/Freeeeeet/consultation_bot/internal/notify"
	"github.com/Freeeeeet/consultation_bot/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionManager владеет компенсирующими действиями: возвратом энергии и завершением консультации.
// Изменение баланса, запись в журнал и смена статуса всегда идут одной транзакцией.
type SessionManager struct {
	tx       repository.TxRunner
	notifier notify.Gateway
	logger   *zap.Logger
}

func NewSessionManager(tx repository.TxRunner, notifier notify.Gateway, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		tx:       tx,
		notifier: notifier,
		logger:   logger,
	}
}

// RefundConsultation возвращает стоимость консультации пользователю и переводит её в REFUNDED.
// Повторный вызов для уже возвращённой консультации ничего не делает.
func (m *SessionManager) RefundConsultation(ctx context.Context, consultationID int64) error {
	var box outbox

	err := m.tx.WithTx(ctx, func(stores repository.Stores) error {
		c, err := stores.Consultations().GetForUpdate(ctx, consultationID)
		if err != nil {
			return fmt.Errorf("lock consultation: %w", err)
		}
		if c == nil {
			return ErrConsultationNotFound
		}
		return m.refundTx(ctx, stores, c, &box)
	})
	if err != nil {
		return err
	}

	box.flush(m.notifier)
	return nil
}

// CompleteConsultation завершает IN_PROGRESS консультацию и выплачивает энергию выбранному исследователю.
// Повторный вызов для уже завершённой консультации ничего не делает.
func (m *SessionManager) CompleteConsultation(ctx context.Context, consultationID int64) error {
	var box outbox

	err := m.tx.WithTx(ctx, func(stores repository.Stores) error {
		c, err := stores.Consultations().GetForUpdate(ctx, consultationID)
		if err != nil {
			return fmt.Errorf("lock consultation: %w", err)
		}
		if c == nil {
			return ErrConsultationNotFound
		}
		return m.completeTx(ctx, stores, c, &box)
	})
	if err != nil {
		return err
	}

	box.flush(m.notifier)
	return nil
}

// refundTx выполняет возврат внутри уже открытой транзакции. Строка c должна быть заблокирована.
func (m *SessionManager) refundTx(ctx context.Context, stores repository.Stores, c *model.Consultation, box *outbox) error {
	if c.Status == model.ConsultationStatusRefunded {
		m.logger.Info("Consultation already refunded, skipping",
			zap.Int64("consultation_id", c.ID))
		return nil
	}
	if c.Status.IsTerminal() {
		return fmt.Errorf("refund consultation %d in status %s: %w", c.ID, c.Status, ErrStatusConflict)
	}

	if err := stores.Consultations().UpdateStatus(ctx, c.ID, c.Status, model.ConsultationStatusRefunded, nil); err != nil {
		return mapStoreError(fmt.Errorf("mark refunded: %w", err))
	}

	userID := c.UserID
	inserted, err := stores.Ledger().Insert(ctx, &model.LedgerEntry{
		ID:             uuid.New(),
		ConsultationID: c.ID,
		Kind:           model.LedgerKindRefund,
		UserID:         &userID,
		Amount:         c.Cost,
	})
	if err != nil {
		return fmt.Errorf("record refund: %w", err)
	}
	if !inserted {
		return fmt.Errorf("refund consultation %d: %w", c.ID, ErrLedgerAlreadyRecorded)
	}

	balance, err := stores.Users().AdjustBalance(ctx, c.UserID, c.Cost)
	if err != nil {
		return mapStoreError(fmt.Errorf("credit user balance: %w", err))
	}

	user, err := stores.Users().GetByID(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user != nil {
		box.add(notify.KindRefunded, user.ChatID, notify.Payload{
			ConsultationID: c.ID,
			Amount:         c.Cost,
			Balance:        balance,
		})
	}

	m.logger.Info("Consultation refunded",
		zap.Int64("consultation_id", c.ID),
		zap.Int64("user_id", c.UserID),
		zap.Int64("amount", c.Cost),
		zap.String("from_status", string(c.Status)),
	)

	c.Status = model.ConsultationStatusRefunded
	c.TimeoutAt = nil
	return nil
}

// completeTx завершает консультацию внутри уже открытой транзакции. Строка c должна быть заблокирована.
func (m *SessionManager) completeTx(ctx context.Context, stores repository.Stores, c *model.Consultation, box *outbox) error {
	if c.Status == model.ConsultationStatusCompleted {
		m.logger.Info("Consultation already completed, skipping",
			zap.Int64("consultation_id", c.ID))
		return nil
	}
	if c.Status != model.ConsultationStatusInProgress {
		return fmt.Errorf("complete consultation %d in status %s: %w", c.ID, c.Status, ErrStatusConflict)
	}
	if c.SelectedResearcherID == nil {
		return fmt.Errorf("complete consultation %d without selected researcher: %w", c.ID, ErrInconsistentState)
	}

	researcherID := *c.SelectedResearcherID

	if err := stores.Consultations().UpdateStatus(ctx, c.ID, model.ConsultationStatusInProgress, model.ConsultationStatusCompleted, nil); err != nil {
		return mapStoreError(fmt.Errorf("mark completed: %w", err))
	}

	inserted, err := stores.Ledger().Insert(ctx, &model.LedgerEntry{
		ID:             uuid.New(),
		ConsultationID: c.ID,
		Kind:           model.LedgerKindPayout,
		ResearcherID:   &researcherID,
		Amount:         c.Cost,
	})
	if err != nil {
		return fmt.Errorf("record payout: %w", err)
	}
	if !inserted {
		return fmt.Errorf("payout consultation %d: %w", c.ID, ErrLedgerAlreadyRecorded)
	}

	if err := stores.Researchers().AddEarnings(ctx, researcherID, c.Cost); err != nil {
		return mapStoreError(fmt.Errorf("pay out researcher: %w", err))
	}

	researcher, err := stores.Researchers().GetForUpdate(ctx, researcherID)
	if err != nil {
		return fmt.Errorf("lock researcher: %w", err)
	}
	if researcher != nil {
		other, err := stores.Consultations().GetActiveByResearcher(ctx, researcherID)
		if err != nil {
			return fmt.Errorf("check researcher conversation: %w", err)
		}
		// Занятый исследователь снова принимает вопросы, если других разговоров нет
		if researcher.Status == model.ResearcherStatusBusy && other == nil {
			if err := stores.Researchers().SetStatus(ctx, researcherID, model.ResearcherStatusOnline); err != nil {
				return fmt.Errorf("release researcher: %w", err)
			}
		}
		box.add(notify.KindCompleted, researcher.ChatID, notify.Payload{
			ConsultationID: c.ID,
			ResearcherID:   researcherID,
			Amount:         c.Cost,
		})
	}

	user, err := stores.Users().GetByID(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user != nil {
		box.add(notify.KindCompleted, user.ChatID, notify.Payload{ConsultationID: c.ID})
	}

	m.logger.Info("Consultation completed",
		zap.Int64("consultation_id", c.ID),
		zap.Int64("researcher_id", researcherID),
		zap.Int64("payout", c.Cost),
	)

	c.Status = model.ConsultationStatusCompleted
	c.TimeoutAt = nil
	return nil
}

// mapStoreError переводит ошибки репозиториев в ошибки сервиса
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return fmt.Errorf("%w: %w", ErrStatusConflict, err)
	case errors.Is(err, repository.ErrInsufficientBalance):
		return fmt.Errorf("%w: %w", ErrInsufficientEnergy, err)
	default:
		return err
	}
}
