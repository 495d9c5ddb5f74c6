// Package bot maps chat commands, button presses and free text onto the
// reminder dialog and scheduler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/dialog"
	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
	"remindbot/internal/transport/telegram/router"
	"remindbot/pkg/tgui"
	logx "remindbot/pkg/logx"
)

// Scheduler is the slice of the reminder scheduler the handlers use.
type Scheduler interface {
	Add(ctx context.Context, owner int64, when time.Time, text string) (reminder.Reminder, error)
	Remove(ctx context.Context, id reminder.ID) bool
	Get(id reminder.ID) (reminder.Reminder, error)
	List(owner int64) []reminder.Reminder
}

type Bot struct {
	picker *dialog.Picker
	sched  Scheduler
	log    logx.Logger
	locale atomic.Value // string
}

type Option func(*Bot)

func WithLogger(l logx.Logger) Option { return func(b *Bot) { b.log = l } }

// WithLocale selects month labels ("en" or "ru").
func WithLocale(locale string) Option { return func(b *Bot) { b.SetLocale(locale) } }

func New(picker *dialog.Picker, sched Scheduler, opts ...Option) *Bot {
	b := &Bot{picker: picker, sched: sched, log: logx.Nop()}
	b.locale.Store("en")
	for _, o := range opts {
		o(b)
	}
	if b.log.IsZero() {
		b.log = logx.Nop()
	}
	return b
}

// SetLocale switches month labels; an empty locale keeps English.
func (b *Bot) SetLocale(locale string) {
	if locale = strings.TrimSpace(locale); locale == "" {
		locale = "en"
	}
	b.locale.Store(locale)
}

func (b *Bot) Commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: "Start the bot", Handle: b.handleStart},
		{Name: "add", Description: "Schedule a reminder", Handle: b.handleAdd},
		{Name: "view", Description: "Show your reminders", Handle: b.handleView},
		{Name: "cancel", Description: "Abort the current reminder", Handle: b.handleCancel},
	}
}

func (b *Bot) Callbacks() []router.CallbackRoute {
	route := func(action string, h router.CallbackHandlerFunc) router.CallbackRoute {
		return router.CallbackRoute{Scope: scope, Action: action, Handle: h}
	}
	return []router.CallbackRoute{
		route(actYear, b.onYear),
		route(actMonth, b.onMonth),
		route(actDay, b.onDay),
		route(actView, b.onView),
		route(actDetails, b.onDetails),
		route(actDelete, b.onDelete),
		route(actCancel, b.onCancel),
	}
}

// Register installs every handler on r.
func (b *Bot) Register(r *router.Router) {
	r.SetRegistry(b.Commands(), b.Callbacks())
	r.SetTextHandler(b.HandleText)
	r.SetUnknownHandler(func(ctx context.Context, req *router.Request) error {
		return reply(ctx, req, textUnknown, nil)
	})
}

func owner(req *router.Request) int64 { return req.Chat.ChatID }

func withMarkup(rm *tele.ReplyMarkup) *kit.SendOptions {
	opt := &kit.SendOptions{DisablePreview: true}
	if rm != nil {
		opt.ReplyMarkupAdapter = rm
	}
	return opt
}

func reply(ctx context.Context, req *router.Request, text string, rm *tele.ReplyMarkup) error {
	_, err := req.Adapter.SendText(ctx, req.Chat, text, withMarkup(rm))
	return err
}

// edit rewrites the message that carried the pressed button.
func edit(ctx context.Context, req *router.Request, text string, rm *tele.ReplyMarkup) error {
	ref := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID}
	return req.Adapter.EditText(ctx, ref, text, withMarkup(rm))
}

func (b *Bot) handleStart(ctx context.Context, req *router.Request) error {
	return reply(ctx, req, textGreeting, nil)
}

func (b *Bot) handleAdd(ctx context.Context, req *router.Request) error {
	b.picker.Start(owner(req))
	return reply(ctx, req, textChooseYear, yearKeyboard(b.picker.Years()))
}

func (b *Bot) handleCancel(ctx context.Context, req *router.Request) error {
	if b.picker.Cancel(owner(req)) {
		return reply(ctx, req, textCancelled, nil)
	}
	return reply(ctx, req, textNothing, nil)
}

// onCancel drops the conversation and removes the keyboard message.
func (b *Bot) onCancel(ctx context.Context, req *router.Request, _ string) error {
	b.picker.Cancel(owner(req))
	return req.Adapter.DeleteMessage(ctx, kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID})
}

// selectionFailed renders a picker error for a button step. A stale button
// with no conversation behind it replaces the keyboard with a hint.
func (b *Bot) selectionFailed(ctx context.Context, req *router.Request, err error) error {
	switch {
	case errors.Is(err, dialog.ErrNoConversation):
		return edit(ctx, req, textNoDialog, nil)
	case errors.Is(err, dialog.ErrWrongStep), errors.Is(err, reminder.ErrInvalidSelection):
		req.Logger.Debug("selection rejected", logx.Err(err))
		return reply(ctx, req, textBadSelection, nil)
	default:
		return err
	}
}

func (b *Bot) onYear(ctx context.Context, req *router.Request, payload string) error {
	year, err := strconv.Atoi(payload)
	if err != nil {
		return b.selectionFailed(ctx, req, reminder.ErrInvalidSelection)
	}
	c, err := b.picker.SelectYear(owner(req), year)
	if err != nil {
		return b.selectionFailed(ctx, req, err)
	}
	return edit(ctx, req, textChooseMonth, monthKeyboard(c.Year, b.locale.Load().(string)))
}

func (b *Bot) onMonth(ctx context.Context, req *router.Request, payload string) error {
	parts, ok := parseInts(payload, 2)
	if !ok {
		return b.selectionFailed(ctx, req, reminder.ErrInvalidSelection)
	}
	c, err := b.picker.SelectMonth(owner(req), parts[0], parts[1])
	if err != nil {
		return b.selectionFailed(ctx, req, err)
	}
	return edit(ctx, req, textChooseDay, dayKeyboard(c.Year, int(c.Month), dialog.DaysInMonth(c.Year, c.Month)))
}

func (b *Bot) onDay(ctx context.Context, req *router.Request, payload string) error {
	parts, ok := parseInts(payload, 3)
	if !ok {
		return b.selectionFailed(ctx, req, reminder.ErrInvalidSelection)
	}
	if _, err := b.picker.SelectDay(owner(req), parts[0], parts[1], parts[2]); err != nil {
		return b.selectionFailed(ctx, req, err)
	}
	return edit(ctx, req, textEnterTime, cancelKeyboard())
}

// HandleText feeds free text into the owner's conversation.
func (b *Bot) HandleText(ctx context.Context, req *router.Request) error {
	id := owner(req)
	c, ok := b.picker.Current(id)
	if !ok {
		return nil
	}
	switch c.State {
	case dialog.AwaitingTime:
		_, err := b.picker.SubmitTime(id, req.Text)
		switch {
		case err == nil:
			return reply(ctx, req, textEnterText, cancelKeyboard())
		case errors.Is(err, reminder.ErrInvalidTimeFormat):
			return reply(ctx, req, textBadTime, nil)
		case errors.Is(err, reminder.ErrPastDateTime):
			return reply(ctx, req, textPastTime, nil)
		default:
			return err
		}
	case dialog.AwaitingText:
		res, err := b.picker.SubmitText(id, req.Text)
		switch {
		case errors.Is(err, reminder.ErrInvalidSelection):
			return reply(ctx, req, textEmptyText, nil)
		case errors.Is(err, reminder.ErrPastDateTime):
			return reply(ctx, req, textPastTime, nil)
		case err != nil:
			return err
		}
		r, err := b.sched.Add(ctx, id, res.When, res.Text)
		if errors.Is(err, reminder.ErrPastDateTime) {
			b.picker.RewindToTime(c)
			return reply(ctx, req, textPastTime, nil)
		}
		if err != nil {
			_ = reply(ctx, req, textFailed, nil)
			return fmt.Errorf("add reminder: %w", err)
		}
		when := r.When.In(b.picker.Location()).Format(confirmLayout)
		return reply(ctx, req, fmt.Sprintf(textScheduled, when, r.Text), nil)
	default:
		return reply(ctx, req, textUseButtons, nil)
	}
}

func (b *Bot) handleView(ctx context.Context, req *router.Request) error {
	text, rm := b.renderList(owner(req), 0)
	return reply(ctx, req, text, rm)
}

// onView re-renders the list in place; the payload is an optional page.
func (b *Bot) onView(ctx context.Context, req *router.Request, payload string) error {
	page, _ := strconv.Atoi(payload)
	text, rm := b.renderList(owner(req), page)
	return edit(ctx, req, text, rm)
}

func (b *Bot) renderList(id int64, page int) (string, *tele.ReplyMarkup) {
	items := b.sched.List(id)
	if len(items) == 0 {
		return textNoReminders, nil
	}
	loc := b.picker.Location()
	p := tgui.Paginate(items, page, listPageSize)
	return textListHeader, listKeyboard(p, func(r reminder.Reminder) string {
		return r.When.In(loc).Format(listLayout) + " - " + r.Text
	})
}

// lookup returns the reminder only when it belongs to the requester.
func (b *Bot) lookup(req *router.Request, payload string) (reminder.Reminder, bool) {
	r, err := b.sched.Get(reminder.ID(strings.TrimSpace(payload)))
	if err != nil || r.Owner != owner(req) {
		return reminder.Reminder{}, false
	}
	return r, true
}

func (b *Bot) onDetails(ctx context.Context, req *router.Request, payload string) error {
	r, ok := b.lookup(req, payload)
	if !ok {
		return edit(ctx, req, textNotFound, backKeyboard())
	}
	text := fmt.Sprintf(textDetails, r.When.In(b.picker.Location()).Format(detailLayout), r.Text)
	return edit(ctx, req, text, detailKeyboard(r.ID))
}

func (b *Bot) onDelete(ctx context.Context, req *router.Request, payload string) error {
	r, ok := b.lookup(req, payload)
	if !ok || !b.sched.Remove(ctx, r.ID) {
		return edit(ctx, req, textNotFound, backKeyboard())
	}
	return edit(ctx, req, textDeleted, backKeyboard())
}

// parseInts splits "a-b[-c]" into exactly n integers.
func parseInts(s string, n int) ([]int, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != n {
		return nil, false
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
