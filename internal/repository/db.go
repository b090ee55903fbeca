package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrStatusConflict      = errors.New("status conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// DBTX общий интерфейс для *pgxpool.Pool и pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type stores struct {
	db DBTX
}

// NewStores создаёт набор репозиториев поверх пула или транзакции
func NewStores(db DBTX) Stores {
	return &stores{db: db}
}

func (s *stores) Consultations() ConsultationStore { return NewConsultationRepository(s.db) }
func (s *stores) Assignments() AssignmentStore     { return NewAssignmentRepository(s.db) }
func (s *stores) Researchers() ResearcherStore     { return NewResearcherRepository(s.db) }
func (s *stores) Users() UserStore                 { return NewUserRepository(s.db) }
func (s *stores) Ledger() LedgerStore              { return NewLedgerRepository(s.db) }
func (s *stores) Messages() MessageStore           { return NewMessageRepository(s.db) }

type poolTxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner поверх пула соединений
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &poolTxRunner{pool: pool}
}

// WithTx выполняет fn в транзакции. Ошибка fn откатывает транзакцию.
func (r *poolTxRunner) WithTx(ctx context.Context, fn func(stores Stores) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback после Commit ничего не делает
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(NewStores(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
