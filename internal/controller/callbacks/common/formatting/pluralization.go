package formatting

// pluralize выбирает форму слова для числа: одна, две-четыре, пять и больше
func pluralize(count int64, one, few, many string) string {
	if count < 0 {
		count = -count
	}
	if count%10 == 1 && count%100 != 11 {
		return one
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return few
	}
	return many
}

// PluralizeMinutes возвращает правильное склонение слова "минута"
func PluralizeMinutes(count int64) string {
	return pluralize(count, "минута", "минуты", "минут")
}

// PluralizeConsultations возвращает правильное склонение слова "консультация"
func PluralizeConsultations(count int64) string {
	return pluralize(count, "консультация", "консультации", "консультаций")
}
