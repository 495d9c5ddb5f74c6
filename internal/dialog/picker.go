// Package dialog implements the per-owner conversation that walks a user
// through year, month, day, time and text before a reminder is created.
package dialog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"remindbot/internal/reminder"
)

var (
	ErrNoConversation = errors.New("no conversation in progress")
	ErrWrongStep      = errors.New("unexpected step for conversation")
)

type State int

const (
	AwaitingYear State = iota
	AwaitingMonth
	AwaitingDay
	AwaitingTime
	AwaitingText
)

func (s State) String() string {
	switch s {
	case AwaitingYear:
		return "awaiting_year"
	case AwaitingMonth:
		return "awaiting_month"
	case AwaitingDay:
		return "awaiting_day"
	case AwaitingTime:
		return "awaiting_time"
	case AwaitingText:
		return "awaiting_text"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Conversation is a copy of one owner's partial selection.
type Conversation struct {
	Owner   int64
	State   State
	Year    int
	Month   time.Month
	Day     int
	When    time.Time
	Touched time.Time
}

// Result is the completed selection handed to the scheduler.
type Result struct {
	When time.Time
	Text string
}

var clockRe = regexp.MustCompile(`^(0[0-9]|1[0-9]|2[0-3])[: ]([0-5][0-9])$`)

// ParseClock parses "HH:MM" or "HH MM" (24h, zero-padded).
func ParseClock(raw string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, 0, reminder.ErrInvalidTimeFormat
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}

// DaysInMonth handles leap years.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

type Option func(*Picker)

func WithClock(now func() time.Time) Option {
	return func(p *Picker) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(p *Picker) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithTTL sets how long an idle conversation survives Sweep. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(p *Picker) { p.ttl = ttl }
}

// Picker holds at most one conversation per owner.
type Picker struct {
	mu    sync.Mutex
	convs map[int64]*Conversation
	now   func() time.Time
	loc   *time.Location
	ttl   time.Duration
}

func New(opts ...Option) *Picker {
	p := &Picker{convs: map[int64]*Conversation{}, now: time.Now, loc: time.Local}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Picker) Location() *time.Location { return p.loc }

// SetTTL applies a new idle TTL; used on config reload.
func (p *Picker) SetTTL(ttl time.Duration) {
	p.mu.Lock()
	p.ttl = ttl
	p.mu.Unlock()
}

func (p *Picker) TTL() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ttl
}

// Years returns the selectable years: current and next in the picker location.
func (p *Picker) Years() [2]int {
	y := p.now().In(p.loc).Year()
	return [2]int{y, y + 1}
}

// Start begins a new conversation, discarding any previous one.
func (p *Picker) Start(owner int64) Conversation {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := &Conversation{Owner: owner, State: AwaitingYear, Touched: p.now()}
	p.convs[owner] = c
	return *c
}

func (p *Picker) SelectYear(owner int64, year int) (Conversation, error) {
	return p.step(owner, AwaitingYear, func(c *Conversation) error {
		ys := p.Years()
		if year != ys[0] && year != ys[1] {
			return reminder.ErrInvalidSelection
		}
		c.Year = year
		c.State = AwaitingMonth
		return nil
	})
}

func (p *Picker) SelectMonth(owner int64, year int, month int) (Conversation, error) {
	return p.step(owner, AwaitingMonth, func(c *Conversation) error {
		if year != c.Year || month < 1 || month > 12 {
			return reminder.ErrInvalidSelection
		}
		c.Month = time.Month(month)
		c.State = AwaitingDay
		return nil
	})
}

func (p *Picker) SelectDay(owner int64, year, month, day int) (Conversation, error) {
	return p.step(owner, AwaitingDay, func(c *Conversation) error {
		if year != c.Year || time.Month(month) != c.Month {
			return reminder.ErrInvalidSelection
		}
		if day < 1 || day > DaysInMonth(c.Year, c.Month) {
			return reminder.ErrInvalidSelection
		}
		c.Day = day
		c.State = AwaitingTime
		return nil
	})
}

// SubmitTime composes the timestamp. On failure the state stays AwaitingTime.
func (p *Picker) SubmitTime(owner int64, raw string) (Conversation, error) {
	return p.step(owner, AwaitingTime, func(c *Conversation) error {
		h, m, err := ParseClock(raw)
		if err != nil {
			return err
		}
		when := time.Date(c.Year, c.Month, c.Day, h, m, 0, 0, p.loc)
		if !when.After(p.now()) {
			return fmt.Errorf("%w: %s", reminder.ErrPastDateTime, when.Format("02-01-2006 15:04"))
		}
		c.When = when
		c.State = AwaitingText
		return nil
	})
}

// SubmitText finishes the conversation and clears it. A time that passed
// while the user was typing sends the conversation back to AwaitingTime with
// the date kept, and returns ErrPastDateTime.
func (p *Picker) SubmitText(owner int64, raw string) (Result, error) {
	text := strings.TrimSpace(raw)
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.convs[owner]
	if !ok {
		return Result{}, ErrNoConversation
	}
	if c.State != AwaitingText {
		return Result{}, fmt.Errorf("%w: at %s, got input for %s", ErrWrongStep, c.State, AwaitingText)
	}
	if text == "" {
		return Result{}, reminder.ErrInvalidSelection
	}
	now := p.now()
	if !c.When.After(now) {
		when := c.When
		rewindLocked(c, now)
		return Result{}, fmt.Errorf("%w: %s", reminder.ErrPastDateTime, when.Format("02-01-2006 15:04"))
	}
	delete(p.convs, owner)
	return Result{When: c.When, Text: text}, nil
}

// RewindToTime reopens c at AwaitingTime with its date kept. It is used when
// the reminder could not be created because its time passed after
// SubmitText returned.
func (p *Picker) RewindToTime(c Conversation) Conversation {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := c
	rewindLocked(&cp, p.now())
	p.convs[c.Owner] = &cp
	return cp
}

func rewindLocked(c *Conversation, now time.Time) {
	c.When = time.Time{}
	c.State = AwaitingTime
	c.Touched = now
}

// Cancel drops the owner's conversation and reports whether one existed.
func (p *Picker) Cancel(owner int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.convs[owner]
	delete(p.convs, owner)
	return ok
}

func (p *Picker) Current(owner int64) (Conversation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.convs[owner]
	if !ok {
		return Conversation{}, false
	}
	return *c, true
}

// Sweep removes conversations idle longer than the TTL.
func (p *Picker) Sweep(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ttl <= 0 {
		return 0
	}
	n := 0
	for owner, c := range p.convs {
		if now.Sub(c.Touched) > p.ttl {
			delete(p.convs, owner)
			n++
		}
	}
	return n
}

func (p *Picker) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.convs)
}

// step runs fn on a scratch copy and commits only on success.
func (p *Picker) step(owner int64, want State, fn func(c *Conversation) error) (Conversation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.convs[owner]
	if !ok {
		return Conversation{}, ErrNoConversation
	}
	if c.State != want {
		return *c, fmt.Errorf("%w: at %s, got input for %s", ErrWrongStep, c.State, want)
	}
	next := *c
	if err := fn(&next); err != nil {
		return *c, err
	}
	next.Touched = p.now()
	*c = next
	return next, nil
}
