package bot

import (
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/reminder"
	"remindbot/pkg/tgui"
)

const (
	scope = "rem"

	actYear    = "year"
	actMonth   = "month"
	actDay     = "day"
	actView    = "view"
	actDetails = "details"
	actDelete  = "delete"
	actCancel  = "cancel"

	listPageSize   = 10
	listLabelRunes = 48
)

func cancelBtn() tele.Btn { return tgui.Btn(btnCancel, tgui.Data(scope, actCancel, "")) }

func backBtn() tele.Btn { return tgui.Btn(btnBack, tgui.Data(scope, actView, "")) }

func yearKeyboard(years [2]int) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	for _, y := range years {
		kb.Row(tgui.Btn(strconv.Itoa(y), tgui.Data(scope, actYear, strconv.Itoa(y))))
	}
	return kb.Row(cancelBtn()).Markup()
}

// monthKeyboard lays the months out in two rows of six.
func monthKeyboard(year int, locale string) *tele.ReplyMarkup {
	btns := make([]tele.Btn, 0, 12)
	for m := 1; m <= 12; m++ {
		data := tgui.Data(scope, actMonth, fmt.Sprintf("%d-%02d", year, m))
		btns = append(btns, tgui.Btn(MonthName(locale, time.Month(m)), data))
	}
	return tgui.NewInline().Grid(6, btns).Row(cancelBtn()).Markup()
}

func dayKeyboard(year, month, days int) *tele.ReplyMarkup {
	btns := make([]tele.Btn, 0, days)
	for d := 1; d <= days; d++ {
		label := fmt.Sprintf("%02d", d)
		btns = append(btns, tgui.Btn(label, tgui.Data(scope, actDay, fmt.Sprintf("%d-%02d-%s", year, month, label))))
	}
	return tgui.NewInline().Grid(7, btns).Row(cancelBtn()).Markup()
}

func cancelKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().Row(cancelBtn()).Markup()
}

// listKeyboard renders one page of reminders, one button per reminder.
func listKeyboard(page tgui.Page[reminder.Reminder], render func(reminder.Reminder) string) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	for _, r := range page.Items {
		kb.Row(tgui.Btn(tgui.TruncRunes(render(r), listLabelRunes), tgui.Data(scope, actDetails, r.ID.String())))
	}
	if page.Pages > 1 {
		var nav []tele.Btn
		if page.HasPrev {
			nav = append(nav, tgui.Btn(btnPrev, tgui.Data(scope, actView, strconv.Itoa(page.Index-1))))
		}
		nav = append(nav, tgui.Btn(page.Label(), tgui.Data(scope, actView, strconv.Itoa(page.Index))))
		if page.HasNext {
			nav = append(nav, tgui.Btn(btnNext, tgui.Data(scope, actView, strconv.Itoa(page.Index+1))))
		}
		kb.Row(nav...)
	}
	return kb.Markup()
}

func detailKeyboard(id reminder.ID) *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn(btnDelete, tgui.Data(scope, actDelete, id.String()))).
		Row(backBtn()).
		Markup()
}

func backKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().Row(backBtn()).Markup()
}
