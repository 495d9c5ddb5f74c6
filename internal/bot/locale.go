package bot

import (
	"strings"
	"time"
)

var monthNames = map[string][12]string{
	"en": {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
	"ru": {"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь", "Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь"},
}

// MonthName labels m in locale, falling back to English.
func MonthName(locale string, m time.Month) string {
	names, ok := monthNames[strings.ToLower(strings.TrimSpace(locale))]
	if !ok {
		names = monthNames["en"]
	}
	if m < time.January || m > time.December {
		return m.String()
	}
	return names[m-1]
}
