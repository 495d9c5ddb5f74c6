package dialog

import (
	"errors"
	"testing"
	"time"

	"remindbot/internal/reminder"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newPicker(now time.Time) (*Picker, *fakeClock) {
	clk := &fakeClock{t: now}
	return New(WithClock(clk.Now), WithLocation(time.UTC), WithTTL(10*time.Minute)), clk
}

func walkToTime(t *testing.T, p *Picker, owner int64, y, m, d int) {
	t.Helper()
	p.Start(owner)
	if _, err := p.SelectYear(owner, y); err != nil {
		t.Fatalf("SelectYear: %v", err)
	}
	if _, err := p.SelectMonth(owner, y, m); err != nil {
		t.Fatalf("SelectMonth: %v", err)
	}
	if _, err := p.SelectDay(owner, y, m, d); err != nil {
		t.Fatalf("SelectDay: %v", err)
	}
}

func TestHappyPath(t *testing.T) {
	t.Parallel()
	p, _ := newPicker(time.Date(2030, 3, 10, 8, 0, 0, 0, time.UTC))
	walkToTime(t, p, 1, 2030, 3, 10)

	c, err := p.SubmitTime(1, "09 30")
	if err != nil {
		t.Fatalf("SubmitTime: %v", err)
	}
	if c.State != AwaitingText {
		t.Fatalf("state = %s", c.State)
	}
	res, err := p.SubmitText(1, "  Call mom ")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	want := time.Date(2030, 3, 10, 9, 30, 0, 0, time.UTC)
	if !res.When.Equal(want) || res.Text != "Call mom" {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := p.Current(1); ok {
		t.Fatal("conversation should be cleared")
	}
}

func TestLeapDay(t *testing.T) {
	t.Parallel()
	p, _ := newPicker(time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))
	p.Start(1)
	if _, err := p.SelectYear(1, 2028); err != nil {
		t.Fatalf("SelectYear: %v", err)
	}
	if _, err := p.SelectMonth(1, 2028, 2); err != nil {
		t.Fatalf("SelectMonth: %v", err)
	}
	if _, err := p.SelectDay(1, 2028, 2, 29); err != nil {
		t.Fatalf("29 Feb 2028 rejected: %v", err)
	}

	p.Start(2)
	_, _ = p.SelectYear(2, 2027)
	_, _ = p.SelectMonth(2, 2027, 2)
	if _, err := p.SelectDay(2, 2027, 2, 29); !errors.Is(err, reminder.ErrInvalidSelection) {
		t.Fatalf("29 Feb 2027 = %v, want ErrInvalidSelection", err)
	}
	if c, _ := p.Current(2); c.State != AwaitingDay {
		t.Fatalf("state after bad day = %s", c.State)
	}
}

func TestSelectYearRange(t *testing.T) {
	t.Parallel()
	p, _ := newPicker(time.Date(2030, 12, 31, 23, 0, 0, 0, time.UTC))
	p.Start(1)
	for _, y := range []int{2029, 2032} {
		if _, err := p.SelectYear(1, y); !errors.Is(err, reminder.ErrInvalidSelection) {
			t.Fatalf("year %d = %v", y, err)
		}
	}
	if ys := p.Years(); ys != [2]int{2030, 2031} {
		t.Fatalf("Years = %v", ys)
	}
}

func TestSubmitTimeErrorsKeepState(t *testing.T) {
	t.Parallel()
	now := time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"bad format", "9:30", reminder.ErrInvalidTimeFormat},
		{"hour out of range", "24:00", reminder.ErrInvalidTimeFormat},
		{"letters", "noon", reminder.ErrInvalidTimeFormat},
		{"past", "11:59", reminder.ErrPastDateTime},
		{"now is not future", "12:00", reminder.ErrPastDateTime},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, _ := newPicker(now)
			walkToTime(t, p, 1, 2030, 3, 10)
			if _, err := p.SubmitTime(1, tt.raw); !errors.Is(err, tt.want) {
				t.Fatalf("SubmitTime(%q) = %v, want %v", tt.raw, err, tt.want)
			}
			c, ok := p.Current(1)
			if !ok || c.State != AwaitingTime {
				t.Fatalf("state = %v ok=%v", c.State, ok)
			}
		})
	}
}

func TestEmptyTextKeepsState(t *testing.T) {
	t.Parallel()
	p, _ := newPicker(time.Date(2030, 3, 10, 8, 0, 0, 0, time.UTC))
	walkToTime(t, p, 1, 2030, 3, 10)
	if _, err := p.SubmitTime(1, "10:00"); err != nil {
		t.Fatalf("SubmitTime: %v", err)
	}
	if _, err := p.SubmitText(1, "   "); !errors.Is(err, reminder.ErrInvalidSelection) {
		t.Fatalf("SubmitText empty = %v", err)
	}
	if c, _ := p.Current(1); c.State != AwaitingText {
		t.Fatalf("state = %s", c.State)
	}
}

func TestTimePassesBeforeText(t *testing.T) {
	t.Parallel()
	p, clk := newPicker(time.Date(2030, 3, 10, 8, 0, 0, 0, time.UTC))
	walkToTime(t, p, 1, 2030, 3, 10)
	if _, err := p.SubmitTime(1, "08:05"); err != nil {
		t.Fatalf("SubmitTime: %v", err)
	}

	clk.t = clk.t.Add(10 * time.Minute)
	if _, err := p.SubmitText(1, "stand-up"); !errors.Is(err, reminder.ErrPastDateTime) {
		t.Fatalf("SubmitText = %v, want ErrPastDateTime", err)
	}
	c, ok := p.Current(1)
	if !ok {
		t.Fatal("conversation dropped")
	}
	if c.State != AwaitingTime || !c.When.IsZero() {
		t.Fatalf("conversation = %+v", c)
	}
	if c.Year != 2030 || c.Month != time.March || c.Day != 10 {
		t.Fatalf("date lost: %+v", c)
	}

	if _, err := p.SubmitTime(1, "09:00"); err != nil {
		t.Fatalf("SubmitTime retry: %v", err)
	}
	res, err := p.SubmitText(1, "stand-up")
	if err != nil {
		t.Fatalf("SubmitText retry: %v", err)
	}
	if want := time.Date(2030, 3, 10, 9, 0, 0, 0, time.UTC); !res.When.Equal(want) {
		t.Fatalf("when = %v", res.When)
	}
}

func TestRewindToTime(t *testing.T) {
	t.Parallel()
	p, clk := newPicker(time.Date(2030, 3, 10, 8, 0, 0, 0, time.UTC))
	walkToTime(t, p, 1, 2030, 3, 10)
	if _, err := p.SubmitTime(1, "08:05"); err != nil {
		t.Fatalf("SubmitTime: %v", err)
	}
	snap, _ := p.Current(1)
	if _, err := p.SubmitText(1, "stand-up"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if p.Len() != 0 {
		t.Fatal("conversation not cleared")
	}

	clk.t = clk.t.Add(time.Minute)
	got := p.RewindToTime(snap)
	if got.State != AwaitingTime || !got.When.IsZero() || !got.Touched.Equal(clk.t) {
		t.Fatalf("rewound = %+v", got)
	}
	if c, ok := p.Current(1); !ok || c.Day != 10 || c.State != AwaitingTime {
		t.Fatalf("current = %+v ok=%v", c, ok)
	}
}

func TestOutOfOrderSteps(t *testing.T) {
	t.Parallel()
	p, _ := newPicker(time.Date(2030, 3, 10, 8, 0, 0, 0, time.UTC))
	if _, err := p.SelectYear(1, 2030); !errors.Is(err, ErrNoConversation) {
		t.Fatalf("no conversation = %v", err)
	}
	p.Start(1)
	if _, err := p.SubmitTime(1, "10:00"); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("wrong step = %v", err)
	}
	if _, err := p.SelectMonth(1, 2031, 1); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("wrong step = %v", err)
	}
}

func TestStartRestartsConversation(t *testing.T) {
	t.Parallel()
	p, _ := newPicker(time.Date(2030, 3, 10, 8, 0, 0, 0, time.UTC))
	walkToTime(t, p, 1, 2030, 3, 10)
	c := p.Start(1)
	if c.State != AwaitingYear || c.Year != 0 {
		t.Fatalf("restart = %+v", c)
	}
}

func TestCancelAndSweep(t *testing.T) {
	t.Parallel()
	p, clk := newPicker(time.Date(2030, 3, 10, 8, 0, 0, 0, time.UTC))
	p.Start(1)
	if !p.Cancel(1) || p.Cancel(1) {
		t.Fatal("Cancel should report existence once")
	}

	p.Start(2)
	clk.t = clk.t.Add(5 * time.Minute)
	p.Start(3)
	if n := p.Sweep(clk.t.Add(6 * time.Minute)); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if _, ok := p.Current(3); !ok {
		t.Fatal("fresh conversation swept")
	}
	p.SetTTL(0)
	if n := p.Sweep(clk.t.Add(time.Hour)); n != 0 {
		t.Fatalf("Sweep with ttl 0 removed %d", n)
	}
}

func TestParseClockAndDaysInMonth(t *testing.T) {
	t.Parallel()
	if h, m, err := ParseClock("23:59"); err != nil || h != 23 || m != 59 {
		t.Fatalf("ParseClock = %d %d %v", h, m, err)
	}
	if DaysInMonth(2028, time.February) != 29 || DaysInMonth(2100, time.February) != 28 {
		t.Fatal("leap year handling")
	}
	if DaysInMonth(2030, time.April) != 30 || DaysInMonth(2030, time.December) != 31 {
		t.Fatal("month length")
	}
}
