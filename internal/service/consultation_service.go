package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Freeeeeet/consultation_bot/internal/clock"
	"github.com/Freeeeeet/consultation_bot/internal/model"
	"github.com/Freeeeeet/consultation_bot/internal/notify"
	"github.com/Freeeeeet/consultation_bot/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	QuestionMinLength = 5
	QuestionMaxLength = 2000

	DefaultConsultationCost    = 10
	DefaultResponseTimeout     = 10 * time.Minute
	DefaultConversationTimeout = 30 * time.Minute
)

type ConsultationConfig struct {
	Cost                int64
	ResponseTimeout     time.Duration
	ConversationTimeout time.Duration
}

// Audit полная история консультации для поддержки
type Audit struct {
	Consultation *model.Consultation             `json:"consultation"`
	Assignments  []*model.ConsultationResearcher `json:"assignments"`
	Ledger       []*model.LedgerEntry            `json:"ledger"`
	Messages     []*model.ConsultationMessage    `json:"messages"`
}

type ConsultationService struct {
	stores   repository.Stores
	tx       repository.TxRunner
	sessions *SessionManager
	notifier notify.Gateway
	clock    clock.Clock
	cfg      ConsultationConfig
	logger   *zap.Logger
}

func NewConsultationService(
	stores repository.Stores,
	tx repository.TxRunner,
	sessions *SessionManager,
	notifier notify.Gateway,
	clk clock.Clock,
	cfg ConsultationConfig,
	logger *zap.Logger,
) *ConsultationService {
	if cfg.Cost <= 0 {
		cfg.Cost = DefaultConsultationCost
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.ConversationTimeout <= 0 {
		cfg.ConversationTimeout = DefaultConversationTimeout
	}

	return &ConsultationService{
		stores:   stores,
		tx:       tx,
		sessions: sessions,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// Cost стоимость одного вопроса в энергии
func (s *ConsultationService) Cost() int64 {
	return s.cfg.Cost
}

// Ask списывает энергию, создаёт консультацию и рассылает вопрос всем исследователям онлайн
func (s *ConsultationService) Ask(ctx context.Context, userID int64, question string) (*model.Consultation, error) {
	question = strings.TrimSpace(question)
	if n := utf8.RuneCountInString(question); n < QuestionMinLength || n > QuestionMaxLength {
		return nil, ErrInvalidQuestion
	}

	var box outbox
	var consultation *model.Consultation

	err := s.tx.WithTx(ctx, func(stores repository.Stores) error {
		user, err := stores.Users().GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}

		online, err := stores.Researchers().ListOnline(ctx)
		if err != nil {
			return fmt.Errorf("list online researchers: %w", err)
		}

		// Пользователь не может отвечать на собственный вопрос
		recipients := make([]*model.Researcher, 0, len(online))
		for _, r := range online {
			if r.TelegramID != user.TelegramID {
				recipients = append(recipients, r)
			}
		}
		if len(recipients) == 0 {
			return ErrNoResearchersOnline
		}

		if _, err := stores.Users().AdjustBalance(ctx, userID, -s.cfg.Cost); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientEnergy
			}
			return fmt.Errorf("charge user: %w", err)
		}

		deadline := s.clock.Now().Add(s.cfg.ResponseTimeout)
		consultation = &model.Consultation{
			UserID:    userID,
			Question:  question,
			Cost:      s.cfg.Cost,
			Status:    model.ConsultationStatusPending,
			TimeoutAt: &deadline,
		}
		if err := stores.Consultations().Create(ctx, consultation); err != nil {
			return err
		}

		if _, err := stores.Ledger().Insert(ctx, &model.LedgerEntry{
			ID:             uuid.New(),
			ConsultationID: consultation.ID,
			Kind:           model.LedgerKindCharge,
			UserID:         &userID,
			Amount:         -s.cfg.Cost,
		}); err != nil {
			return fmt.Errorf("record charge: %w", err)
		}

		ids := make([]int64, len(recipients))
		for i, r := range recipients {
			ids[i] = r.ID
			box.add(notify.KindQuestion, r.ChatID, notify.Payload{
				ConsultationID: consultation.ID,
				Question:       question,
			})
		}
		if err := stores.Assignments().CreateBatch(ctx, consultation.ID, ids); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	recipients := len(box.notices)
	box.flush(s.notifier)

	s.logger.Info("Consultation created",
		zap.Int64("consultation_id", consultation.ID),
		zap.Int64("user_id", userID),
		zap.Int64("cost", consultation.Cost),
		zap.Int("recipients", recipients),
	)

	return consultation, nil
}

// SubmitAnswer сохраняет первый ответ исследователя. Ответы принимаются только пока
// консультация в PENDING; блокировка строки упорядочивает ответ относительно таймаута.
func (s *ConsultationService) SubmitAnswer(ctx context.Context, consultationID, researcherID int64, answer string) error {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ErrEmptyAnswer
	}

	var box outbox

	err := s.tx.WithTx(ctx, func(stores repository.Stores) error {
		c, err := stores.Consultations().GetForUpdate(ctx, consultationID)
		if err != nil {
			return fmt.Errorf("lock consultation: %w", err)
		}
		if c == nil {
			return ErrConsultationNotFound
		}
		if c.Status != model.ConsultationStatusPending {
			return ErrStatusConflict
		}

		assignment, err := findAssignment(ctx, stores, consultationID, researcherID)
		if err != nil {
			return err
		}
		if assignment.HasAnswered() {
			return ErrAlreadyAnswered
		}

		if err := stores.Assignments().SetFirstAnswer(ctx, consultationID, researcherID, answer, s.clock.Now()); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return ErrAlreadyAnswered
			}
			return err
		}

		user, err := stores.Users().GetByID(ctx, c.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user != nil {
			box.add(notify.KindAnswer, user.ChatID, notify.Payload{
				ConsultationID: consultationID,
				ResearcherID:   researcherID,
				Text:           answer,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	box.flush(s.notifier)

	s.logger.Info("Researcher answered",
		zap.Int64("consultation_id", consultationID),
		zap.Int64("researcher_id", researcherID))

	return nil
}

// SelectResearcher фиксирует выбор пользователя и начинает разговор
func (s *ConsultationService) SelectResearcher(ctx context.Context, consultationID, userID, researcherID int64) error {
	var box outbox

	err := s.tx.WithTx(ctx, func(stores repository.Stores) error {
		c, err := stores.Consultations().GetForUpdate(ctx, consultationID)
		if err != nil {
			return fmt.Errorf("lock consultation: %w", err)
		}
		if c == nil {
			return ErrConsultationNotFound
		}
		if c.UserID != userID {
			return ErrNotParticipant
		}
		if c.Status != model.ConsultationStatusPending && c.Status != model.ConsultationStatusWaitingSelect {
			return ErrStatusConflict
		}

		assignments, err := stores.Assignments().FindByConsultation(ctx, consultationID)
		if err != nil {
			return fmt.Errorf("find assignments: %w", err)
		}

		var selected *model.ConsultationResearcher
		for _, a := range assignments {
			if a.ResearcherID == researcherID {
				selected = a
			}
		}
		if selected == nil {
			return ErrNotAssigned
		}
		if !selected.HasAnswered() {
			return ErrNotAnswered
		}

		// Блокировка исследователя упорядочивает параллельные выборы одного и того же человека
		researcher, err := stores.Researchers().GetForUpdate(ctx, researcherID)
		if err != nil {
			return fmt.Errorf("lock researcher: %w", err)
		}
		if researcher == nil {
			return ErrResearcherNotFound
		}
		active, err := stores.Consultations().GetActiveByResearcher(ctx, researcherID)
		if err != nil {
			return fmt.Errorf("check researcher conversation: %w", err)
		}
		if active != nil {
			return ErrResearcherBusy
		}

		deadline := s.clock.Now().Add(s.cfg.ConversationTimeout)
		if err := stores.Consultations().SetSelectedResearcher(ctx, consultationID, c.Status, researcherID, deadline); err != nil {
			return mapStoreError(err)
		}
		if err := stores.Researchers().SetStatus(ctx, researcherID, model.ResearcherStatusBusy); err != nil {
			return fmt.Errorf("mark researcher busy: %w", err)
		}

		for _, a := range assignments {
			if a.ResearcherID == researcherID {
				box.add(notify.KindSelected, a.ChatID, notify.Payload{
					ConsultationID: consultationID,
					ResearcherID:   researcherID,
					Question:       c.Question,
				})
				continue
			}
			box.add(notify.KindNotSelected, a.ChatID, notify.Payload{ConsultationID: consultationID})
		}
		return nil
	})
	if err != nil {
		return err
	}

	box.flush(s.notifier)

	s.logger.Info("Researcher selected",
		zap.Int64("consultation_id", consultationID),
		zap.Int64("user_id", userID),
		zap.Int64("researcher_id", researcherID))

	return nil
}

// Finish досрочно завершает разговор по инициативе пользователя
func (s *ConsultationService) Finish(ctx context.Context, consultationID, userID int64) error {
	c, err := s.stores.Consultations().GetByID(ctx, consultationID)
	if err != nil {
		return fmt.Errorf("get consultation: %w", err)
	}
	if c == nil {
		return ErrConsultationNotFound
	}
	if c.UserID != userID {
		return ErrNotParticipant
	}

	return s.sessions.CompleteConsultation(ctx, consultationID)
}

// Relay пересылает сообщение собеседнику в идущем разговоре.
// Отправитель определяется по Telegram ID: сначала как пользователь, затем как исследователь.
func (s *ConsultationService) Relay(ctx context.Context, telegramID int64, text string) (*model.Consultation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyAnswer
	}

	c, sender, err := s.activeFor(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if c.IsDue(s.clock.Now()) {
		// Время разговора вышло, консультацию закроет планировщик
		return nil, ErrStatusConflict
	}

	msg := &model.ConsultationMessage{
		ConsultationID: c.ID,
		Sender:         sender,
		Text:           text,
	}
	if err := s.stores.Messages().Insert(ctx, msg); err != nil {
		return nil, err
	}

	var chatID int64
	if sender == model.MessageSenderUser {
		researcher, err := s.stores.Researchers().GetByID(ctx, *c.SelectedResearcherID)
		if err != nil {
			return nil, fmt.Errorf("get researcher: %w", err)
		}
		if researcher != nil {
			chatID = researcher.ChatID
		}
	} else {
		user, err := s.stores.Users().GetByID(ctx, c.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		if user != nil {
			chatID = user.ChatID
		}
	}

	s.notifier.Notify(notify.KindFollowUp, chatID, notify.Payload{
		ConsultationID: c.ID,
		Text:           text,
	})

	return c, nil
}

// ActiveForUser возвращает идущий разговор пользователя или nil
func (s *ConsultationService) ActiveForUser(ctx context.Context, userID int64) (*model.Consultation, error) {
	return s.stores.Consultations().GetActiveByUser(ctx, userID)
}

// ListUserConsultations возвращает последние консультации пользователя
func (s *ConsultationService) ListUserConsultations(ctx context.Context, userID int64, limit int) ([]*model.Consultation, error) {
	return s.stores.Consultations().ListByUser(ctx, userID, limit)
}

// GetAudit собирает консультацию, рассылки, движения энергии и переписку
func (s *ConsultationService) GetAudit(ctx context.Context, consultationID int64) (*Audit, error) {
	c, err := s.stores.Consultations().GetByID(ctx, consultationID)
	if err != nil {
		return nil, fmt.Errorf("get consultation: %w", err)
	}
	if c == nil {
		return nil, ErrConsultationNotFound
	}

	assignments, err := s.stores.Assignments().FindByConsultation(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.stores.Ledger().ListByConsultation(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	messages, err := s.stores.Messages().ListByConsultation(ctx, consultationID)
	if err != nil {
		return nil, err
	}

	return &Audit{
		Consultation: c,
		Assignments:  assignments,
		Ledger:       ledger,
		Messages:     messages,
	}, nil
}

func (s *ConsultationService) activeFor(ctx context.Context, telegramID int64) (*model.Consultation, model.MessageSender, error) {
	user, err := s.stores.Users().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	if user != nil {
		c, err := s.stores.Consultations().GetActiveByUser(ctx, user.ID)
		if err != nil {
			return nil, "", err
		}
		if c != nil {
			return c, model.MessageSenderUser, nil
		}
	}

	researcher, err := s.stores.Researchers().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, "", fmt.Errorf("get researcher: %w", err)
	}
	if researcher != nil {
		c, err := s.stores.Consultations().GetActiveByResearcher(ctx, researcher.ID)
		if err != nil {
			return nil, "", err
		}
		if c != nil {
			return c, model.MessageSenderResearcher, nil
		}
	}

	return nil, "", ErrNoActiveConsultation
}

func findAssignment(ctx context.Context, stores repository.Stores, consultationID, researcherID int64) (*model.ConsultationResearcher, error) {
	assignments, err := stores.Assignments().FindByConsultation(ctx, consultationID)
	if err != nil {
		return nil, fmt.Errorf("find assignments: %w", err)
	}
	for _, a := range assignments {
		if a.ResearcherID == researcherID {
			return a, nil
		}
	}
	return nil, ErrNotAssigned
}
