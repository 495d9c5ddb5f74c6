package scheduler

// Snapshot is the diagnostics view served by the ops endpoint.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	loc := s.loc
	c := s.c
	defs := append([]housekeepingDef(nil), s.defs...)
	eng := s.engine
	tz := s.cfg.Timezone
	s.mu.Unlock()

	if tz == "" && loc != nil {
		tz = loc.String()
	}
	snap := Snapshot{
		Timezone:  tz,
		Reminders: s.store.Len(),
		Jobs:      s.armedSnapshot(),
		Schedules: make([]ScheduleInfo, 0, len(defs)),
	}
	for _, d := range defs {
		it := ScheduleInfo{Name: d.name, Spec: d.spec, Timeout: d.timeout}
		if c != nil && d.entryID != 0 {
			e := c.Entry(d.entryID)
			it.Next, it.Prev = e.Next, e.Prev
		}
		snap.Schedules = append(snap.Schedules, it)
	}
	if eng != nil {
		snap.Engine = eng.Snapshot()
	}
	return snap
}
