package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/reminder"
	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

const defaultFireTimeout = 30 * time.Second

// Add stores a reminder and arms its phases. when must be in the future.
func (s *Service) Add(ctx context.Context, owner int64, when time.Time, text string) (reminder.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return reminder.Reminder{}, err
	}
	now := s.now()
	if !when.After(now) {
		return reminder.Reminder{}, reminder.ErrPastDateTime
	}

	s.rmu.Lock()
	r, err := s.store.Create(owner, when, text)
	if err != nil {
		s.rmu.Unlock()
		return reminder.Reminder{}, err
	}
	jobs := s.armLocked(r.ID, r.When, now)
	s.rmu.Unlock()

	s.log.Info("reminder scheduled",
		logx.String("reminder", r.ID.String()),
		logx.Int64("owner", owner),
		logx.Time("when", r.When),
		logx.Int("phases", len(jobs)),
	)
	s.publish(eventbus.ReminderCreated, reminder.Event{ID: r.ID, Owner: r.Owner, When: r.When, Jobs: len(jobs)})
	return r, nil
}

// Remove cancels every phase of id and deletes the record. It reports
// whether the record existed; removing twice is a no-op.
func (s *Service) Remove(_ context.Context, id reminder.ID) bool {
	s.rmu.Lock()
	r, getErr := s.store.Get(id)
	cancelled := s.cancelAllLocked(id)
	existed := s.store.Delete(id)
	s.rmu.Unlock()

	if !existed {
		return false
	}
	s.log.Info("reminder removed", logx.String("reminder", id.String()), logx.Int("jobs_cancelled", cancelled))
	ev := reminder.Event{ID: id, Jobs: cancelled, Reason: "user"}
	if getErr == nil {
		ev.Owner, ev.When = r.Owner, r.When
	}
	s.publish(eventbus.ReminderDeleted, ev)
	return true
}

// Arm registers a timer for every phase of id that fires strictly after now.
func (s *Service) Arm(id reminder.ID, when time.Time) []reminder.JobID {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	return s.armLocked(id, when, s.now())
}

func (s *Service) armLocked(id reminder.ID, when, now time.Time) []reminder.JobID {
	out := make([]reminder.JobID, 0, len(reminder.Phases))
	for _, p := range reminder.Phases {
		fireAt := p.FireAt(when)
		if !fireAt.After(now) {
			continue
		}
		job := reminder.JobID{Reminder: id, Phase: p}
		if prev, ok := s.jobs[job]; ok {
			prev.timer.Stop()
		}
		s.ver++
		ver := s.ver
		s.jobs[job] = &armed{
			fireAt: fireAt,
			ver:    ver,
			timer:  time.AfterFunc(fireAt.Sub(now), func() { s.trigger(job, ver) }),
		}
		out = append(out, job)
	}
	return out
}

// CancelAll stops every armed phase of id and returns how many were armed.
func (s *Service) CancelAll(id reminder.ID) int {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	return s.cancelAllLocked(id)
}

func (s *Service) cancelAllLocked(id reminder.ID) int {
	n := 0
	for _, p := range reminder.Phases {
		if s.dropJobLocked(reminder.JobID{Reminder: id, Phase: p}) {
			n++
		}
	}
	return n
}

func (s *Service) dropJobLocked(job reminder.JobID) bool {
	a, ok := s.jobs[job]
	if !ok {
		return false
	}
	a.timer.Stop()
	delete(s.jobs, job)
	return true
}

// trigger runs on the timer goroutine.
func (s *Service) trigger(job reminder.JobID, ver uint64) {
	s.rmu.Lock()
	a, ok := s.jobs[job]
	live := ok && a.ver == ver
	s.rmu.Unlock()
	if !live {
		return
	}

	s.mu.Lock()
	timeout := s.cfg.FireTimeout
	s.mu.Unlock()
	if timeout <= 0 {
		timeout = defaultFireTimeout
	}

	if s.engine != nil && s.engine.Running() {
		err := s.engine.Enqueue(engine.Task{
			ID:      job.String(),
			Name:    "reminder." + job.Phase.String(),
			Timeout: timeout,
			Run: func(ctx context.Context) error {
				return engine.NoRetry(s.Fire(ctx, job))
			},
			State: &engine.RunState{},
		})
		if err == nil {
			return
		}
		s.reportEnqueueError("reminder."+job.Phase.String(), err)
	}

	ctx, cancel := context.WithTimeout(s.runContext(), timeout)
	defer cancel()
	_ = s.Fire(ctx, job)
}

// Fire delivers one phase. The record lookup happens under the reminder
// lock and the delivery outside it; a reminder removed before the lookup
// is silently skipped. The exact phase retires the record whether or not
// delivery succeeded.
func (s *Service) Fire(ctx context.Context, job reminder.JobID) error {
	if s.sink == nil {
		return errors.New("scheduler has no sink")
	}
	s.rmu.Lock()
	r, err := s.store.Get(job.Reminder)
	if err != nil {
		s.dropJobLocked(job)
		s.rmu.Unlock()
		s.log.Debug("fire skipped: reminder gone", logx.String("job", job.String()))
		return nil
	}
	msg := job.Phase.Message(r.Text)
	s.rmu.Unlock()

	derr := s.sink.Deliver(ctx, notifier.Delivery{Owner: r.Owner, Text: msg, Key: job.String()})

	s.rmu.Lock()
	s.dropJobLocked(job)
	retired := false
	if job.Phase.Terminal() {
		s.cancelAllLocked(job.Reminder)
		retired = s.store.Delete(job.Reminder)
	}
	s.rmu.Unlock()

	ev := reminder.Event{ID: r.ID, Owner: r.Owner, When: r.When, Phase: job.Phase.String()}
	if derr != nil {
		ev.Error = derr.Error()
		s.log.Warn("reminder delivery failed",
			logx.String("job", job.String()),
			logx.Int64("owner", r.Owner),
			logx.Err(derr),
		)
		s.publish(eventbus.ReminderDeliveryFailed, ev)
	} else {
		s.log.Debug("reminder phase delivered", logx.String("job", job.String()), logx.Int64("owner", r.Owner))
		s.publish(eventbus.ReminderFired, ev)
	}
	if retired {
		s.publish(eventbus.ReminderRetired, reminder.Event{ID: r.ID, Owner: r.Owner, When: r.When})
	}
	if derr != nil {
		return fmt.Errorf("%w: %s: %w", reminder.ErrDeliveryFailure, job, derr)
	}
	return nil
}

// Jobs returns the armed phases of id in firing order.
func (s *Service) Jobs(id reminder.ID) []reminder.JobID {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	out := make([]reminder.JobID, 0, len(reminder.Phases))
	for _, p := range reminder.Phases {
		job := reminder.JobID{Reminder: id, Phase: p}
		if _, ok := s.jobs[job]; ok {
			out = append(out, job)
		}
	}
	return out
}

// Get returns the record of id.
func (s *Service) Get(id reminder.ID) (reminder.Reminder, error) {
	return s.store.Get(id)
}

// List returns the owner's reminders by time.
func (s *Service) List(owner int64) []reminder.Reminder {
	return s.store.List(owner)
}

func (s *Service) publish(typ string, ev reminder.Event) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: ev})
	}
}

func (s *Service) armedSnapshot() []JobInfo {
	s.rmu.Lock()
	out := make([]JobInfo, 0, len(s.jobs))
	for job, a := range s.jobs {
		out = append(out, JobInfo{Reminder: job.Reminder, Phase: job.Phase.String(), FireAt: a.fireAt})
	}
	s.rmu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].Reminder < out[j].Reminder
	})
	return out
}
