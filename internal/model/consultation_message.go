package model

import "time"

type MessageSender string

const (
	MessageSenderUser       MessageSender = "user"
	MessageSenderResearcher MessageSender = "researcher"
)

// ConsultationMessage сообщение переписки внутри IN_PROGRESS консультации
type ConsultationMessage struct {
	ID             int64         `json:"id"`
	ConsultationID int64         `json:"consultation_id"`
	Sender         MessageSender `json:"sender"`
	Text           string        `json:"text"`
	CreatedAt      time.Time     `json:"created_at"`
}
