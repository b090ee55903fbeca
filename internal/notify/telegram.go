package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Форматы callback data для кнопок в уведомлениях
const (
	AnswerCallbackPrefix = "answer:" // answer:consultation_id
	SelectCallbackPrefix = "select:" // select:consultation_id:researcher_id
)

// AnswerCallbackData кнопка "Ответить" для исследователя
func AnswerCallbackData(consultationID int64) string {
	return AnswerCallbackPrefix + strconv.FormatInt(consultationID, 10)
}

// SelectCallbackData кнопка выбора исследователя для пользователя
func SelectCallbackData(consultationID, researcherID int64) string {
	return fmt.Sprintf("%s%d:%d", SelectCallbackPrefix, consultationID, researcherID)
}

// ParseSelectCallbackData разбирает select:consultation_id:researcher_id
func ParseSelectCallbackData(data string) (consultationID, researcherID int64, err error) {
	parts := strings.Split(strings.TrimPrefix(data, SelectCallbackPrefix), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid select callback: %q", data)
	}

	consultationID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse consultation id: %w", err)
	}
	researcherID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse researcher id: %w", err)
	}

	return consultationID, researcherID, nil
}

// ParseAnswerCallbackData разбирает answer:consultation_id
func ParseAnswerCallbackData(data string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, AnswerCallbackPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid answer callback %q: %w", data, err)
	}
	return id, nil
}

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramSender отправляет уведомления через Telegram бота
type TelegramSender struct {
	bot messageSender
}

func NewTelegramSender(b *bot.Bot) *TelegramSender {
	return &TelegramSender{bot: b}
}

func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	text, keyboard := Render(msg)

	params := &bot.SendMessageParams{
		ChatID: msg.ChatID,
		Text:   text,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := s.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send %s notification: %w", msg.Kind, err)
	}
	return nil
}

// Render строит текст и клавиатуру уведомления
func Render(msg Message) (string, *models.InlineKeyboardMarkup) {
	p := msg.Payload

	switch msg.Kind {
	case KindQuestion:
		text := fmt.Sprintf("❓ Новый вопрос #%d\n\n%s\n\nНажмите «Ответить», чтобы отправить первый ответ.", p.ConsultationID, p.Question)
		return text, singleButton("✍️ Ответить", AnswerCallbackData(p.ConsultationID))
	case KindAnswer:
		text := fmt.Sprintf("💬 Ответ исследователя #%d на вопрос #%d:\n\n%s", p.ResearcherID, p.ConsultationID, p.Text)
		return text, singleButton("✅ Выбрать этого исследователя", SelectCallbackData(p.ConsultationID, p.ResearcherID))
	case KindTimeout:
		return fmt.Sprintf("⏰ Время на ответ по вопросу #%d истекло.\n\nРейтинг снижен на %d.", p.ConsultationID, p.Penalty), nil
	case KindSelectionOpen:
		minutes := int(p.Timeout.Round(time.Minute) / time.Minute)
		return fmt.Sprintf("⌛ Приём ответов на вопрос #%d закрыт. Получено ответов: %d.\n\nВыберите исследователя в течение %d мин., иначе энергия вернётся на баланс.", p.ConsultationID, p.Answers, minutes), nil
	case KindRefunded:
		return fmt.Sprintf("↩️ Консультация #%d закрыта без исследователя.\n\nВозвращено энергии: %d\nБаланс: %d", p.ConsultationID, p.Amount, p.Balance), nil
	case KindSelected:
		return fmt.Sprintf("🎉 Вас выбрали для консультации #%d.\n\nВопрос: %s\n\nПишите сюда, сообщения будут переданы пользователю.", p.ConsultationID, p.Question), nil
	case KindNotSelected:
		return fmt.Sprintf("ℹ️ По вопросу #%d пользователь выбрал другого исследователя.", p.ConsultationID), nil
	case KindCompleted:
		if p.Amount > 0 {
			return fmt.Sprintf("✅ Консультация #%d завершена. Начислено энергии: %d", p.ConsultationID, p.Amount), nil
		}
		return fmt.Sprintf("✅ Консультация #%d завершена.", p.ConsultationID), nil
	case KindFollowUp:
		return fmt.Sprintf("💬 #%d: %s", p.ConsultationID, p.Text), nil
	default:
		return p.Text, nil
	}
}

func singleButton(text, data string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: text, CallbackData: data}},
		},
	}
}
