package eventbus

// Reminder lifecycle topics.
const (
	ReminderCreated        = "reminder.created"
	ReminderFired          = "reminder.fired"
	ReminderRetired        = "reminder.retired"
	ReminderDeleted        = "reminder.deleted"
	ReminderDeliveryFailed = "reminder.delivery_failed"
)

// Task engine topics.
const (
	TaskStarted  = "task.started"
	TaskFinished = "task.finished"
	TaskFailed   = "task.failed"
	TaskSkipped  = "task.skipped"
	TaskDropped  = "task.dropped"
)

// Notifier topics.
const (
	NotifierSent    = "notifier.sent"
	NotifierFailed  = "notifier.failed"
	NotifierDeduped = "notifier.deduped"
	NotifierQueued  = "notifier.queued"
	NotifierDropped = "notifier.dropped"
)
