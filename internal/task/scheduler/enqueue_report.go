package scheduler

import (
	"errors"
	"time"

	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

// enqueue failures repeat on every tick of a stuck job; warn once per window.
const enqueueWarnThrottle = 5 * time.Second

func (s *Service) reportEnqueueError(name string, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, engine.ErrOverlapSkip):
		s.log.Debug("trigger skipped", logx.String("job", name), logx.Err(err))
		return
	}

	now := time.Now()
	s.enqMu.Lock()
	quiet := now.Sub(s.lastEnqWarn[name]) < enqueueWarnThrottle
	if !quiet {
		s.lastEnqWarn[name] = now
	}
	s.enqMu.Unlock()
	if !quiet {
		s.log.Warn("task enqueue failed", logx.String("job", name), logx.Err(err))
	}
}
