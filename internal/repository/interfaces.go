package repository

import (
	"context"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/model"
)

// ConsultationStore хранилище консультаций
type ConsultationStore interface {
	Create(ctx context.Context, c *model.Consultation) error
	GetByID(ctx context.Context, id int64) (*model.Consultation, error)
	// GetForUpdate читает консультацию с блокировкой строки до конца транзакции
	GetForUpdate(ctx context.Context, id int64) (*model.Consultation, error)
	FindDue(ctx context.Context, now time.Time, statuses []model.ConsultationStatus, limit int) ([]*model.Consultation, error)
	// UpdateStatus меняет статус, только если текущий статус равен expected.
	// Иначе возвращает ErrStatusConflict.
	UpdateStatus(ctx context.Context, id int64, expected, status model.ConsultationStatus, timeoutAt *time.Time) error
	SetSelectedResearcher(ctx context.Context, id int64, expected model.ConsultationStatus, researcherID int64, timeoutAt time.Time) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Consultation, error)
	GetActiveByUser(ctx context.Context, userID int64) (*model.Consultation, error)
	GetActiveByResearcher(ctx context.Context, researcherID int64) (*model.Consultation, error)
}

// AssignmentStore хранилище рассылок вопроса исследователям
type AssignmentStore interface {
	CreateBatch(ctx context.Context, consultationID int64, researcherIDs []int64) error
	FindByConsultation(ctx context.Context, consultationID int64) ([]*model.ConsultationResearcher, error)
	// SetFirstAnswer выставляет ответ, только если его ещё нет
	SetFirstAnswer(ctx context.Context, consultationID, researcherID int64, answer string, at time.Time) error
}

type ResearcherStore interface {
	Create(ctx context.Context, r *model.Researcher) error
	GetByID(ctx context.Context, id int64) (*model.Researcher, error)
	// GetForUpdate читает исследователя с блокировкой строки до конца транзакции
	GetForUpdate(ctx context.Context, id int64) (*model.Researcher, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.Researcher, error)
	ListOnline(ctx context.Context) ([]*model.Researcher, error)
	SetStatus(ctx context.Context, id int64, status model.ResearcherStatus) error
	// DecrementScore уменьшает recommend_score; floor == nil означает отсутствие нижней границы
	DecrementScore(ctx context.Context, id int64, amount int64, floor *int64) error
	AddEarnings(ctx context.Context, id int64, amount int64) error
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
	// AdjustBalance изменяет баланс на delta, не позволяя уйти в минус
	AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error)
}

type LedgerStore interface {
	// Insert возвращает false, если запись такого вида для консультации уже есть
	Insert(ctx context.Context, e *model.LedgerEntry) (bool, error)
	ListByConsultation(ctx context.Context, consultationID int64) ([]*model.LedgerEntry, error)
}

type MessageStore interface {
	Insert(ctx context.Context, m *model.ConsultationMessage) error
	ListByConsultation(ctx context.Context, consultationID int64) ([]*model.ConsultationMessage, error)
}

// Stores набор хранилищ, привязанных к одному соединению или транзакции
type Stores interface {
	Consultations() ConsultationStore
	Assignments() AssignmentStore
	Researchers() ResearcherStore
	Users() UserStore
	Ledger() LedgerStore
	Messages() MessageStore
}

// TxRunner выполняет функцию внутри транзакции и отдаёт хранилища, привязанные к ней
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores Stores) error) error
}
