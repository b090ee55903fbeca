package state

// UserState представляет текущее состояние пользователя в диалоге
type UserState string

const (
	StateNone UserState = "" // Нет активного состояния

	// Пользователь отправил /ask без текста, ждём вопрос
	StateAwaitingQuestion UserState = "awaiting_question"

	// Исследователь нажал «Ответить», ждём текст первого ответа
	StateAwaitingAnswer UserState = "awaiting_answer"
)

// Ключи временных данных диалога
const (
	DataConsultationID = "consultation_id"
)

// UserData хранит временные данные пользователя во время диалога
type UserData struct {
	State UserState
	Data  map[string]interface{} // Временные данные для текущего диалога
}
