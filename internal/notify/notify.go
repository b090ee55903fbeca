package notify

import "time"

// Kind тип уведомления
type Kind string

const (
	KindQuestion      Kind = "question"       // Новый вопрос для исследователя
	KindAnswer        Kind = "answer"         // Пользователю пришёл ответ
	KindTimeout       Kind = "timeout"        // Исследователь не успел ответить
	KindSelectionOpen Kind = "selection_open" // Окно ответов закрыто, пора выбрать исследователя
	KindRefunded      Kind = "refunded"       // Пользователю вернули энергию
	KindSelected      Kind = "selected"       // Исследователя выбрали
	KindNotSelected   Kind = "not_selected"   // Выбрали другого исследователя
	KindCompleted     Kind = "completed"      // Консультация завершена
	KindFollowUp      Kind = "follow_up"      // Сообщение в переписке
)

// Payload данные для текста уведомления
type Payload struct {
	ConsultationID int64
	ResearcherID   int64
	Question       string
	Text           string
	Amount         int64
	Penalty        int64
	Balance        int64
	Answers        int
	Timeout        time.Duration
}

// Message готовое к отправке уведомление
type Message struct {
	Kind    Kind
	ChatID  int64
	Payload Payload
}

// Gateway доставляет уведомления. Доставка best-effort: ошибки не возвращаются.
type Gateway interface {
	Notify(kind Kind, chatID int64, payload Payload)
}
