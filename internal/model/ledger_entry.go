package model

import (
	"time"

	"github.com/google/uuid"
)

type LedgerKind string

const (
	LedgerKindCharge LedgerKind = "charge" // Списание за вопрос
	LedgerKindRefund LedgerKind = "refund" // Возврат пользователю
	LedgerKindPayout LedgerKind = "payout" // Выплата исследователю
)

// LedgerEntry движение энергии по консультации.
// Пара (consultation_id, kind) уникальна, поэтому повторный возврат или выплата невозможны.
type LedgerEntry struct {
	ID             uuid.UUID  `json:"id"`
	ConsultationID int64      `json:"consultation_id"`
	Kind           LedgerKind `json:"kind"`
	UserID         *int64     `json:"user_id,omitempty"`
	ResearcherID   *int64     `json:"researcher_id,omitempty"`
	Amount         int64      `json:"amount"`
	CreatedAt      time.Time  `json:"created_at"`
}
