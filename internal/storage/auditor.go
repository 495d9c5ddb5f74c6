package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

// RunAuditor writes a row for every reminder.* event until ctx ends.
func RunAuditor(ctx context.Context, bus eventbus.Bus, st Store, log logx.Logger) error {
	if bus == nil || st == nil {
		return nil
	}
	events, unsubscribe := bus.Subscribe(256, "reminder.")
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e, ok := auditFromEvent(ev)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := st.AppendAudit(wctx, e)
			cancel()
			if err != nil {
				log.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
			}
		}
	}
}

func auditFromEvent(ev eventbus.Event) (AuditEntry, bool) {
	re, ok := ev.Data.(reminder.Event)
	if !ok {
		return AuditEntry{}, false
	}
	e := AuditEntry{
		At:         ev.Time,
		OwnerID:    re.Owner,
		Action:     strings.TrimPrefix(ev.Type, "reminder."),
		ReminderID: re.ID.String(),
		Phase:      re.Phase,
		OK:         re.Error == "",
		Error:      re.Error,
	}
	meta := map[string]any{}
	if !re.When.IsZero() {
		meta["when"] = re.When.Format(time.RFC3339)
	}
	if re.Jobs > 0 {
		meta["jobs"] = re.Jobs
	}
	if re.Reason != "" {
		meta["reason"] = re.Reason
	}
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			e.MetaJSON = string(b)
		}
	}
	return e, true
}
