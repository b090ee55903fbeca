package model

import "time"

type ConsultationStatus string

const (
	ConsultationStatusPending       ConsultationStatus = "pending"        // Ждём первые ответы исследователей
	ConsultationStatusWaitingSelect ConsultationStatus = "waiting_select" // Пользователь выбирает исследователя
	ConsultationStatusInProgress    ConsultationStatus = "in_progress"    // Идёт разговор с выбранным исследователем
	ConsultationStatusCompleted     ConsultationStatus = "completed"      // Завершена, оплата ушла исследователю
	ConsultationStatusRefunded      ConsultationStatus = "refunded"       // Энергия возвращена пользователю
)

// NonTerminalStatuses статусы, у которых timeout_at означает дедлайн
var NonTerminalStatuses = []ConsultationStatus{
	ConsultationStatusPending,
	ConsultationStatusWaitingSelect,
	ConsultationStatusInProgress,
}

// IsTerminal проверяет, что из статуса больше нет переходов
func (s ConsultationStatus) IsTerminal() bool {
	return s == ConsultationStatusCompleted || s == ConsultationStatusRefunded
}

type Consultation struct {
	ID                   int64              `json:"id"`
	UserID               int64              `json:"user_id"`
	Question             string             `json:"question"`
	Cost                 int64              `json:"cost"`
	Status               ConsultationStatus `json:"status"`
	TimeoutAt            *time.Time         `json:"timeout_at"` // смысл зависит от статуса
	SelectedResearcherID *int64             `json:"selected_researcher_id"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
	FinishedAt           *time.Time         `json:"finished_at"`
}

// IsDue проверяет, что дедлайн консультации истёк к моменту now
func (c *Consultation) IsDue(now time.Time) bool {
	if c.Status.IsTerminal() || c.TimeoutAt == nil {
		return false
	}
	return !c.TimeoutAt.After(now)
}
