package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/dialog"
	"remindbot/internal/notifier"
	"remindbot/internal/reminder"
	"remindbot/internal/task/scheduler"
	kit "remindbot/internal/transport"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
)

type op struct {
	kind   string // send, edit, delete
	chat   int64
	msgID  int
	text   string
	markup *tele.ReplyMarkup
}

type fakeAdapter struct {
	mu  sync.Mutex
	ops []op
}

func (f *fakeAdapter) record(o op) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, o)
}

func markupOf(opt *kit.SendOptions) *tele.ReplyMarkup {
	if opt == nil {
		return nil
	}
	rm, _ := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	return rm
}

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.record(op{kind: "send", chat: to.ChatID, text: text, markup: markupOf(opt)})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 100}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.record(op{kind: "edit", chat: ref.ChatID, msgID: ref.MessageID, text: text, markup: markupOf(opt)})
	return nil
}

func (f *fakeAdapter) DeleteMessage(_ context.Context, ref kit.MessageRef) error {
	f.record(op{kind: "delete", chat: ref.ChatID, msgID: ref.MessageID})
	return nil
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                    { return nil }
func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error {
	return nil
}

func (f *fakeAdapter) last(t *testing.T) op {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ops) == 0 {
		t.Fatal("no adapter calls")
	}
	return f.ops[len(f.ops)-1]
}

type nullSink struct{}

func (nullSink) Deliver(context.Context, notifier.Delivery) error { return nil }

var t0 = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	ad     *fakeAdapter
	r      *router.Router
	sched  *scheduler.Service
	picker *dialog.Picker
}

// testClock is a settable clock shared by picker and scheduler.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newHarness(t *testing.T, locale string) *harness {
	t.Helper()
	clock := func() time.Time { return t0 }
	return newHarnessWithClocks(t, locale, clock, clock)
}

func newHarnessWithClocks(t *testing.T, locale string, pickerNow, schedNow func() time.Time) *harness {
	t.Helper()
	picker := dialog.New(dialog.WithClock(pickerNow), dialog.WithLocation(time.UTC))
	sched := scheduler.New(scheduler.Config{Timezone: "UTC"}, reminder.NewMemoryStore(), nullSink{}, scheduler.WithClock(schedNow))
	t.Cleanup(func() { sched.Stop(context.Background()) })

	ad := &fakeAdapter{}
	r := router.New(logx.Nop(), ad)
	New(picker, sched, WithLocale(locale)).Register(r)
	return &harness{ad: ad, r: r, sched: sched, picker: picker}
}

func (h *harness) text(chat int64, s string) {
	h.r.Route(context.Background(), kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 1, ChatID: chat, FromID: chat, Text: s}})
}

func (h *harness) press(chat int64, data string) {
	h.r.Route(context.Background(), kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb", ChatID: chat, FromID: chat, MessageID: 42, Data: data}})
}

func buttons(rm *tele.ReplyMarkup) [][]tele.InlineButton {
	if rm == nil {
		return nil
	}
	return rm.InlineKeyboard
}

func expect(t *testing.T, got op, kind, text string) {
	t.Helper()
	if got.kind != kind || got.text != text {
		t.Fatalf("got %s %q, want %s %q", got.kind, got.text, kind, text)
	}
}

func TestFullDialogSchedulesReminder(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")
	const chat = 77

	h.text(chat, "/add")
	got := h.ad.last(t)
	expect(t, got, "send", textChooseYear)
	rows := buttons(got.markup)
	if len(rows) != 3 || rows[0][0].Data != "rem:year:2030" || rows[1][0].Data != "rem:year:2031" || rows[2][0].Data != "rem:cancel" {
		t.Fatalf("year keyboard = %+v", rows)
	}

	h.press(chat, "rem:year:2030")
	got = h.ad.last(t)
	expect(t, got, "edit", textChooseMonth)
	if got.msgID != 42 {
		t.Fatalf("edited message %d", got.msgID)
	}
	rows = buttons(got.markup)
	if len(rows) != 3 || len(rows[0]) != 6 || len(rows[1]) != 6 {
		t.Fatalf("month grid = %d rows", len(rows))
	}
	if rows[0][0].Text != "January" || rows[1][5].Data != "rem:month:2030-12" {
		t.Fatalf("month buttons = %+v", rows[:2])
	}

	h.press(chat, "rem:month:2030-06")
	got = h.ad.last(t)
	expect(t, got, "edit", textChooseDay)
	rows = buttons(got.markup)
	// 30 days: four full rows of seven, a row of two, then cancel
	if len(rows) != 6 || len(rows[0]) != 7 || len(rows[4]) != 2 || rows[4][1].Text != "30" || rows[0][0].Data != "rem:day:2030-06-01" {
		t.Fatalf("day grid = %+v", rows)
	}

	h.press(chat, "rem:day:2030-06-01")
	expect(t, h.ad.last(t), "edit", textEnterTime)

	h.text(chat, "25:00")
	expect(t, h.ad.last(t), "send", textBadTime)
	h.text(chat, "11:59")
	expect(t, h.ad.last(t), "send", textPastTime)
	h.text(chat, "12 40")
	expect(t, h.ad.last(t), "send", textEnterText)
	h.text(chat, "  Stand-up ")
	expect(t, h.ad.last(t), "send", "Reminder scheduled for 01-06-2030 12:40: Stand-up")

	list := h.sched.List(chat)
	if len(list) != 1 || !list[0].When.Equal(t0.Add(40*time.Minute)) || list[0].Text != "Stand-up" {
		t.Fatalf("stored = %+v", list)
	}
	if n := len(h.sched.Jobs(list[0].ID)); n != 3 {
		t.Fatalf("armed %d phases", n)
	}

	// the conversation is over; further text is ignored
	before := len(h.ad.ops)
	h.text(chat, "hello")
	if len(h.ad.ops) != before {
		t.Fatal("text outside a conversation was answered")
	}
}

func walkToText(t *testing.T, h *harness, chat int64, clock string) {
	t.Helper()
	h.text(chat, "/add")
	h.press(chat, "rem:year:2030")
	h.press(chat, "rem:month:2030-06")
	h.press(chat, "rem:day:2030-06-01")
	h.text(chat, clock)
	expect(t, h.ad.last(t), "send", textEnterText)
}

func TestTimePassesWhileTypingText(t *testing.T) {
	t.Parallel()
	clk := &testClock{t: t0}
	h := newHarnessWithClocks(t, "en", clk.Now, clk.Now)
	const chat = 5

	walkToText(t, h, chat, "12:05")
	clk.Advance(10 * time.Minute)
	h.text(chat, "standup")
	expect(t, h.ad.last(t), "send", textPastTime)

	c, ok := h.picker.Current(chat)
	if !ok || c.State != dialog.AwaitingTime {
		t.Fatalf("conversation = %+v ok=%v, want AwaitingTime", c, ok)
	}
	if c.Year != 2030 || c.Month != time.June || c.Day != 1 {
		t.Fatalf("date lost: %+v", c)
	}
	if n := len(h.sched.List(chat)); n != 0 {
		t.Fatalf("stored %d reminders", n)
	}

	h.text(chat, "12:30")
	expect(t, h.ad.last(t), "send", textEnterText)
	h.text(chat, "standup")
	expect(t, h.ad.last(t), "send", "Reminder scheduled for 01-06-2030 12:30: standup")
}

func TestSchedulerRejectsPastKeepsConversation(t *testing.T) {
	t.Parallel()
	// the picker still sees 12:00 while the scheduler is already past 12:05
	late := &testClock{t: t0.Add(10 * time.Minute)}
	h := newHarnessWithClocks(t, "en", func() time.Time { return t0 }, late.Now)
	const chat = 6

	walkToText(t, h, chat, "12:05")
	h.text(chat, "standup")
	expect(t, h.ad.last(t), "send", textPastTime)

	c, ok := h.picker.Current(chat)
	if !ok || c.State != dialog.AwaitingTime || c.Day != 1 || c.Month != time.June {
		t.Fatalf("conversation = %+v ok=%v", c, ok)
	}
}

func TestRussianMonthLabels(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "ru")
	h.text(1, "/add")
	h.press(1, "rem:year:2031")
	rows := buttons(h.ad.last(t).markup)
	if rows[0][0].Text != "Январь" || rows[0][0].Data != "rem:month:2031-01" {
		t.Fatalf("first month = %+v", rows[0][0])
	}
}

func TestInvalidSelectionKeepsStep(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")
	h.text(1, "/add")
	h.press(1, "rem:year:2040")
	expect(t, h.ad.last(t), "send", textBadSelection)
	h.press(1, "rem:month:2030-01")
	expect(t, h.ad.last(t), "send", textBadSelection)
	h.text(1, "12:00")
	expect(t, h.ad.last(t), "send", textUseButtons)

	h.press(1, "rem:year:2030")
	expect(t, h.ad.last(t), "edit", textChooseMonth)
}

func TestStaleButtonWithoutConversation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")
	h.press(1, "rem:year:2030")
	expect(t, h.ad.last(t), "edit", textNoDialog)
}

func TestCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")
	h.text(1, "/cancel")
	expect(t, h.ad.last(t), "send", textNothing)

	h.text(1, "/add")
	h.press(1, "rem:cancel")
	got := h.ad.last(t)
	if got.kind != "delete" || got.msgID != 42 {
		t.Fatalf("cancel = %+v", got)
	}
	h.press(1, "rem:year:2030")
	expect(t, h.ad.last(t), "edit", textNoDialog)

	h.text(1, "/add")
	h.text(1, "/cancel")
	expect(t, h.ad.last(t), "send", textCancelled)
}

func TestViewDetailsDelete(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")
	ctx := context.Background()

	h.text(5, "/view")
	expect(t, h.ad.last(t), "send", textNoReminders)

	late, _ := h.sched.Add(ctx, 5, t0.Add(3*time.Hour), "late")
	early, _ := h.sched.Add(ctx, 5, t0.Add(time.Hour), "early")
	_, _ = h.sched.Add(ctx, 6, t0.Add(2*time.Hour), "someone else")

	h.text(5, "/view")
	got := h.ad.last(t)
	expect(t, got, "send", textListHeader)
	rows := buttons(got.markup)
	if len(rows) != 2 || rows[0][0].Text != "13:00 - early" || rows[1][0].Text != "15:00 - late" {
		t.Fatalf("list = %+v", rows)
	}
	if rows[0][0].Data != "rem:details:"+early.ID.String() {
		t.Fatalf("details data = %q", rows[0][0].Data)
	}

	h.press(5, "rem:details:"+late.ID.String())
	got = h.ad.last(t)
	expect(t, got, "edit", "Reminder details:\n\nTime: 2030-06-01 15:00\nText: late")
	rows = buttons(got.markup)
	if rows[0][0].Data != "rem:delete:"+late.ID.String() || rows[1][0].Data != "rem:view" {
		t.Fatalf("detail keyboard = %+v", rows)
	}

	// another owner's reminder does not exist for chat 6
	h.press(6, "rem:details:"+late.ID.String())
	expect(t, h.ad.last(t), "edit", textNotFound)
	h.press(6, "rem:delete:"+late.ID.String())
	expect(t, h.ad.last(t), "edit", textNotFound)

	h.press(5, "rem:delete:"+late.ID.String())
	expect(t, h.ad.last(t), "edit", textDeleted)
	if _, err := h.sched.Get(late.ID); err == nil {
		t.Fatal("reminder still stored")
	}
	h.press(5, "rem:delete:"+late.ID.String())
	expect(t, h.ad.last(t), "edit", textNotFound)

	h.press(5, "rem:view")
	got = h.ad.last(t)
	expect(t, got, "edit", textListHeader)
	if rows := buttons(got.markup); len(rows) != 1 {
		t.Fatalf("list after delete = %+v", rows)
	}
}

func TestListPagination(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")
	for i := 0; i < listPageSize+3; i++ {
		_, _ = h.sched.Add(context.Background(), 9, t0.Add(time.Duration(i+1)*time.Hour), strings.Repeat("x", 60))
	}
	h.text(9, "/view")
	rows := buttons(h.ad.last(t).markup)
	if len(rows) != listPageSize+1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if got := rows[0][0].Text; len([]rune(got)) != listLabelRunes || !strings.HasSuffix(got, "…") {
		t.Fatalf("label = %q", got)
	}
	nav := rows[listPageSize]
	if len(nav) != 2 || nav[1].Data != "rem:view:1" {
		t.Fatalf("nav = %+v", nav)
	}

	h.press(9, "rem:view:1")
	rows = buttons(h.ad.last(t).markup)
	if len(rows) != 4 || rows[3][0].Data != "rem:view:0" {
		t.Fatalf("page 2 = %+v", rows)
	}
}

func TestStartAndUnknown(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")
	h.text(1, "/start")
	expect(t, h.ad.last(t), "send", textGreeting)
	h.text(1, "/frobnicate")
	expect(t, h.ad.last(t), "send", textUnknown)
}

func TestMonthName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		locale string
		m      time.Month
		want   string
	}{
		{"en", time.March, "March"},
		{"RU", time.December, "Декабрь"},
		{"de", time.May, "May"},
	}
	for _, tt := range tests {
		if got := MonthName(tt.locale, tt.m); got != tt.want {
			t.Fatalf("MonthName(%q, %v) = %q, want %q", tt.locale, tt.m, got, tt.want)
		}
	}
}
