package common

import (
	"errors"

	"github.com/Freeeeeet/consultation_bot/internal/service"
)

// Общие ошибки для обработчиков
var (
	ErrNoMessage     = errors.New("no message in callback")
	ErrInvalidFormat = errors.New("invalid callback format")
	ErrNotResearcher = errors.New("user is not a researcher")
)

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return "❌ Пользователь не найден. Используйте /start"
	case errors.Is(err, service.ErrResearcherNotFound), errors.Is(err, ErrNotResearcher):
		return "❌ Эта функция доступна только исследователям. Зарегистрироваться: /researcher"
	case errors.Is(err, service.ErrConsultationNotFound):
		return "❌ Консультация не найдена"
	case errors.Is(err, service.ErrInsufficientEnergy):
		return "❌ Недостаточно энергии. Проверьте баланс: /balance"
	case errors.Is(err, service.ErrNoResearchersOnline):
		return "😔 Сейчас нет исследователей онлайн. Попробуйте позже."
	case errors.Is(err, service.ErrInvalidQuestion):
		return "❌ Вопрос должен быть от 5 до 2000 символов"
	case errors.Is(err, service.ErrEmptyAnswer):
		return "❌ Пустое сообщение"
	case errors.Is(err, service.ErrNotAssigned):
		return "❌ Этот вопрос адресован не вам"
	case errors.Is(err, service.ErrAlreadyAnswered):
		return "ℹ️ Вы уже ответили на этот вопрос"
	case errors.Is(err, service.ErrNotAnswered):
		return "❌ Этот исследователь ещё не ответил"
	case errors.Is(err, service.ErrResearcherBusy):
		return "⏳ Исследователь сейчас ведёт другую консультацию. Выберите другого ответившего"
	case errors.Is(err, service.ErrNotParticipant):
		return "❌ Это не ваша консультация"
	case errors.Is(err, service.ErrNoActiveConsultation):
		return "ℹ️ У вас нет активного разговора. Задать вопрос: /ask"
	case errors.Is(err, service.ErrStatusConflict):
		return "⏰ Консультация уже перешла в другой статус"
	case errors.Is(err, ErrNoMessage):
		return "❌ Ошибка обработки сообщения"
	case errors.Is(err, ErrInvalidFormat):
		return "❌ Неверный формат данных"
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}
