package formatting

import "github.com/Freeeeeet/consultation_bot/internal/model"

// StatusDisplay представляет отображение статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetConsultationStatusDisplay возвращает emoji и текст для статуса консультации
func GetConsultationStatusDisplay(status model.ConsultationStatus) StatusDisplay {
	displays := map[model.ConsultationStatus]StatusDisplay{
		model.ConsultationStatusPending:       {"⏳", "Ждём ответы"},
		model.ConsultationStatusWaitingSelect: {"🤔", "Выберите исследователя"},
		model.ConsultationStatusInProgress:    {"💬", "Идёт разговор"},
		model.ConsultationStatusCompleted:     {"✅", "Завершена"},
		model.ConsultationStatusRefunded:      {"↩️", "Энергия возвращена"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Неизвестно"}
}

// GetResearcherStatusDisplay возвращает emoji и текст для статуса исследователя
func GetResearcherStatusDisplay(status model.ResearcherStatus) StatusDisplay {
	displays := map[model.ResearcherStatus]StatusDisplay{
		model.ResearcherStatusOnline:  {"🟢", "Онлайн"},
		model.ResearcherStatusOffline: {"⚫️", "Оффлайн"},
		model.ResearcherStatusBusy:    {"🔴", "Занят"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Неизвестно"}
}
