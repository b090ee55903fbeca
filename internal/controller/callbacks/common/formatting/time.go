package formatting

import (
	"fmt"
	"time"
)

// FormatDateTime форматирует дату и время
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatRemaining форматирует оставшееся до дедлайна время с точностью до минуты
func FormatRemaining(deadline, now time.Time) string {
	left := deadline.Sub(now)
	if left <= 0 {
		return "время вышло"
	}

	minutes := int64((left + time.Minute - 1) / time.Minute)
	if minutes < 60 {
		return fmt.Sprintf("%d %s", minutes, PluralizeMinutes(minutes))
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}
