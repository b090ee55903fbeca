package model

import "time"

type ResearcherStatus string

const (
	ResearcherStatusOnline  ResearcherStatus = "online"
	ResearcherStatusOffline ResearcherStatus = "offline"
	ResearcherStatusBusy    ResearcherStatus = "busy"
)

type Researcher struct {
	ID             int64            `json:"id"`
	TelegramID     int64            `json:"telegram_id"`
	ChatID         int64            `json:"chat_id"`
	DisplayName    string           `json:"display_name"`
	RecommendScore int64            `json:"recommend_score"` // репутация, уменьшается за пропущенные ответы
	Status         ResearcherStatus `json:"status"`
	EarnedEnergy   int64            `json:"earned_energy"`
	CreatedAt      time.Time        `json:"created_at"`
}
