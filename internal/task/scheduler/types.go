package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/reminder"
	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

type Config struct {
	Timezone string // IANA name; empty means Local
	// FireTimeout bounds one reminder fire, delivery included.
	FireTimeout time.Duration
}

// Sink delivers a rendered phase message.
type Sink interface {
	Deliver(ctx context.Context, d notifier.Delivery) error
}

type Option func(*Service)

// WithClock overrides the time source used to decide which phases to arm.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithEngine(e *engine.Service) Option { return func(s *Service) { s.engine = e } }

func WithBus(b eventbus.Bus) Option { return func(s *Service) { s.bus = b } }

func WithLogger(l logx.Logger) Option { return func(s *Service) { s.log = l } }

// armed is one registered phase timer. ver guards against a stale callback
// of a timer that was stopped too late.
type armed struct {
	timer  *time.Timer
	fireAt time.Time
	ver    uint64
}

type housekeepingDef struct {
	name          string
	spec          string
	timeout       time.Duration
	job           func(ctx context.Context) error
	entryID       cron.EntryID
	startupSpread time.Duration
	state         *engine.RunState
}

type Service struct {
	// rmu is the reminder lock: store mutations, the job registry and
	// record lookups during a fire all happen under it.
	rmu   sync.Mutex
	store reminder.Store
	jobs  map[reminder.JobID]*armed
	ver   uint64

	sink   Sink
	engine *engine.Service
	bus    eventbus.Bus
	log    logx.Logger
	now    func() time.Time

	// mu guards the cron runner and housekeeping definitions.
	mu     sync.Mutex
	cfg    Config
	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
	defs   []housekeepingDef
	ctx    context.Context

	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time
}

// JobInfo describes one armed phase.
type JobInfo struct {
	Reminder reminder.ID `json:"reminder"`
	Phase    string      `json:"phase"`
	FireAt   time.Time   `json:"fire_at"`
}

type ScheduleInfo struct {
	Name    string        `json:"name"`
	Spec    string        `json:"spec"`
	Timeout time.Duration `json:"timeout"`
	Next    time.Time     `json:"next,omitempty"`
	Prev    time.Time     `json:"prev,omitempty"`
}

type Snapshot struct {
	Timezone  string          `json:"timezone"`
	Reminders int             `json:"reminders"`
	Jobs      []JobInfo       `json:"jobs"`
	Schedules []ScheduleInfo  `json:"schedules"`
	Engine    engine.Snapshot `json:"engine"`
}
