package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/clock"
	"github.com/Freeeeeet/consultation_bot/internal/model"
	"github.com/Freeeeeet/consultation_bot/internal/notify"
	"github.com/Freeeeeet/consultation_bot/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultSelectionTimeout    = 3 * time.Minute
	DefaultMissedAnswerPenalty = 10
	DefaultTimeoutBatchSize    = 100
)

type TimeoutConfig struct {
	// SelectionTimeout время на выбор исследователя после истечения окна ответов
	SelectionTimeout time.Duration
	// MissedAnswerPenalty штраф к recommend_score за пропущенный первый ответ
	MissedAnswerPenalty int64
	// ScoreFloor нижняя граница recommend_score, nil — без ограничения
	ScoreFloor *int64
	// BatchSize сколько просроченных консультаций обрабатывается за один проход
	BatchSize int
}

// TickResult итог одного прохода по просроченным консультациям
type TickResult struct {
	Scanned  int
	Resolved int
	Skipped  int
	Failed   int
}

// TimeoutService разрешает истёкшие дедлайны консультаций.
//
//	PENDING, никто не ответил    -> REFUNDED, штраф всем исследователям
//	PENDING, есть ответы         -> WAITING_SELECT (+SelectionTimeout), штраф не ответившим
//	WAITING_SELECT               -> REFUNDED
//	IN_PROGRESS                  -> COMPLETED, выплата исследователю
//
// Каждая консультация разрешается в своей транзакции под блокировкой строки,
// поэтому повторный или параллельный проход не даёт двойных штрафов и возвратов.
type TimeoutService struct {
	stores   repository.Stores
	tx       repository.TxRunner
	sessions *SessionManager
	notifier notify.Gateway
	clock    clock.Clock
	cfg      TimeoutConfig
	logger   *zap.Logger
}

func NewTimeoutService(
	stores repository.Stores,
	tx repository.TxRunner,
	sessions *SessionManager,
	notifier notify.Gateway,
	clk clock.Clock,
	cfg TimeoutConfig,
	logger *zap.Logger,
) *TimeoutService {
	if cfg.SelectionTimeout <= 0 {
		cfg.SelectionTimeout = DefaultSelectionTimeout
	}
	if cfg.MissedAnswerPenalty <= 0 {
		cfg.MissedAnswerPenalty = DefaultMissedAnswerPenalty
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultTimeoutBatchSize
	}

	return &TimeoutService{
		stores:   stores,
		tx:       tx,
		sessions: sessions,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// ProcessDue выполняет один проход: находит просроченные консультации и разрешает каждую.
// Ошибка одной консультации не прерывает обработку остальных; она остаётся просроченной
// и будет повторена на следующем проходе.
func (s *TimeoutService) ProcessDue(ctx context.Context) (TickResult, error) {
	var result TickResult

	now := s.clock.Now()
	due, err := s.stores.Consultations().FindDue(ctx, now, model.NonTerminalStatuses, s.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("find due consultations: %w", err)
	}

	result.Scanned = len(due)
	if len(due) == 0 {
		return result, nil
	}

	s.logger.Debug("Processing due consultations", zap.Int("count", len(due)))

	for _, c := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		resolved, err := s.resolve(ctx, c.ID)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Error("Failed to resolve consultation timeout",
				zap.Int64("consultation_id", c.ID),
				zap.String("status", string(c.Status)),
				zap.Error(err))
		case resolved:
			result.Resolved++
		default:
			result.Skipped++
		}
	}

	s.logger.Info("Timeout pass finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("resolved", result.Resolved),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	return result, nil
}

// resolve блокирует консультацию, перечитывает её и применяет правило перехода.
// false без ошибки означает, что консультация уже не просрочена (её продвинул другой путь).
func (s *TimeoutService) resolve(ctx context.Context, consultationID int64) (resolved bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while resolving consultation %d: %v", consultationID, r)
		}
	}()

	var box outbox

	err = s.tx.WithTx(ctx, func(stores repository.Stores) error {
		c, err := stores.Consultations().GetForUpdate(ctx, consultationID)
		if err != nil {
			return fmt.Errorf("lock consultation: %w", err)
		}
		if c == nil {
			return ErrConsultationNotFound
		}

		now := s.clock.Now()
		if !c.IsDue(now) {
			s.logger.Debug("Consultation no longer due, skipping",
				zap.Int64("consultation_id", c.ID),
				zap.String("status", string(c.Status)))
			return nil
		}

		switch c.Status {
		case model.ConsultationStatusPending:
			err = s.expirePending(ctx, stores, c, now, &box)
		case model.ConsultationStatusWaitingSelect:
			err = s.sessions.refundTx(ctx, stores, c, &box)
		case model.ConsultationStatusInProgress:
			err = s.sessions.completeTx(ctx, stores, c, &box)
		default:
			return nil
		}
		if err != nil {
			return err
		}

		resolved = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			// Статус сменился между чтением и записью: для этой строки делать нечего
			s.logger.Warn("Consultation changed concurrently, skipping",
				zap.Int64("consultation_id", consultationID),
				zap.Error(err))
			return false, nil
		}
		return false, err
	}

	box.flush(s.notifier)
	return resolved, nil
}

// expirePending закрывает окно первых ответов. Ответившие определяются по данным,
// прочитанным под блокировкой консультации, а не по результату первоначального поиска.
func (s *TimeoutService) expirePending(ctx context.Context, stores repository.Stores, c *model.Consultation, now time.Time, box *outbox) error {
	assignments, err := stores.Assignments().FindByConsultation(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("refetch assignments: %w", err)
	}

	var answered int
	var unanswered []*model.ConsultationResearcher
	for _, a := range assignments {
		if a.HasAnswered() {
			answered++
		} else {
			unanswered = append(unanswered, a)
		}
	}

	if answered == 0 {
		if err := s.sessions.refundTx(ctx, stores, c, box); err != nil {
			return err
		}
	} else {
		deadline := now.Add(s.cfg.SelectionTimeout)
		err := stores.Consultations().UpdateStatus(ctx, c.ID, model.ConsultationStatusPending, model.ConsultationStatusWaitingSelect, &deadline)
		if err != nil {
			return mapStoreError(fmt.Errorf("move to waiting select: %w", err))
		}

		user, err := stores.Users().GetByID(ctx, c.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user != nil {
			box.add(notify.KindSelectionOpen, user.ChatID, notify.Payload{
				ConsultationID: c.ID,
				Answers:        answered,
				Timeout:        s.cfg.SelectionTimeout,
			})
		}

		s.logger.Info("Consultation moved to selection",
			zap.Int64("consultation_id", c.ID),
			zap.Int("answered", answered),
			zap.Time("timeout_at", deadline))
	}

	for _, a := range unanswered {
		if err := stores.Researchers().DecrementScore(ctx, a.ResearcherID, s.cfg.MissedAnswerPenalty, s.cfg.ScoreFloor); err != nil {
			return fmt.Errorf("penalize researcher %d: %w", a.ResearcherID, err)
		}

		box.add(notify.KindTimeout, a.ChatID, notify.Payload{
			ConsultationID: c.ID,
			ResearcherID:   a.ResearcherID,
			Penalty:        s.cfg.MissedAnswerPenalty,
		})

		s.logger.Info("Researcher penalized for missed answer",
			zap.Int64("consultation_id", c.ID),
			zap.Int64("researcher_id", a.ResearcherID),
			zap.Int64("penalty", s.cfg.MissedAnswerPenalty))
	}

	return nil
}
