package model

import "time"

type User struct {
	ID            int64     `json:"id"`
	TelegramID    int64     `json:"telegram_id"`
	ChatID        int64     `json:"chat_id"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	LanguageCode  string    `json:"language_code"`
	EnergyBalance int64     `json:"energy_balance"`
	CreatedAt     time.Time `json:"created_at"`
}
