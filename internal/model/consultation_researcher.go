package model

import "time"

// ConsultationResearcher запись о рассылке вопроса конкретному исследователю
type ConsultationResearcher struct {
	ConsultationID int64      `json:"consultation_id"`
	ResearcherID   int64      `json:"researcher_id"`
	FirstAnswer    *string    `json:"first_answer"` // выставляется один раз, обратно не сбрасывается
	AnsweredAt     *time.Time `json:"answered_at"`
	CreatedAt      time.Time  `json:"created_at"`

	// Дополнительные поля для удобства (не из таблицы)
	ChatID int64 `json:"chat_id,omitempty"`
}

// HasAnswered проверяет, ответил ли исследователь
func (a *ConsultationResearcher) HasAnswered() bool {
	return a.FirstAnswer != nil
}
