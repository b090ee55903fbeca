package formatting

import (
	"testing"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestPluralizeMinutes(t *testing.T) {
	cases := map[int64]string{
		1: "минута", 2: "минуты", 4: "минуты", 5: "минут", 11: "минут",
		12: "минут", 21: "минута", 22: "минуты", 111: "минут",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeMinutes(n), "n=%d", n)
	}
}

func TestFormatRemaining(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "время вышло", FormatRemaining(now, now))
	assert.Equal(t, "1 минута", FormatRemaining(now.Add(20*time.Second), now))
	assert.Equal(t, "3 минуты", FormatRemaining(now.Add(3*time.Minute), now))
	assert.Equal(t, "1 ч", FormatRemaining(now.Add(time.Hour), now))
	assert.Equal(t, "1 ч 30 мин", FormatRemaining(now.Add(90*time.Minute), now))
}

func TestStatusDisplay(t *testing.T) {
	assert.Equal(t, "↩️", GetConsultationStatusDisplay(model.ConsultationStatusRefunded).Emoji)
	assert.Equal(t, "Неизвестно", GetConsultationStatusDisplay("archived").Text)
	assert.Equal(t, "Занят", GetResearcherStatusDisplay(model.ResearcherStatusBusy).Text)
}
