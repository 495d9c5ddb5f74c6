package bot

const (
	textGreeting = "Hi! I'm a reminder bot.\n\n" +
		"/add - schedule a reminder\n" +
		"/view - show your reminders\n" +
		"/cancel - abort the current reminder"

	textChooseYear   = "Choose a year:"
	textChooseMonth  = "Choose a month:"
	textChooseDay    = "Choose a day:"
	textEnterTime    = "Enter the time (HH:MM or HH MM):"
	textEnterText    = "Now enter the reminder text:"
	textBadTime      = "Invalid time format. Use HH:MM or HH MM."
	textPastTime     = "That date and time has already passed. Enter a future time:"
	textEmptyText    = "The reminder text cannot be empty. Enter the reminder text:"
	textUseButtons   = "Please use the buttons above, or /cancel."
	textBadSelection = "Invalid selection, please choose again."
	textNoDialog     = "No reminder is being created. Use /add to start."
	textScheduled    = "Reminder scheduled for %s: %s"
	textNoReminders  = "You have no reminders."
	textListHeader   = "Your reminders:"
	textDetails      = "Reminder details:\n\nTime: %s\nText: %s"
	textNotFound     = "Reminder not found."
	textDeleted      = "Reminder deleted."
	textCancelled    = "Cancelled."
	textNothing      = "Nothing to cancel."
	textUnknown      = "Unknown command. Try /start."
	textFailed       = "Something went wrong, please try again."

	btnCancel = "Cancel"
	btnDelete = "Delete"
	btnBack   = "Back"
	btnPrev   = "«"
	btnNext   = "»"

	confirmLayout = "02-01-2006 15:04"
	detailLayout  = "2006-01-02 15:04"
	listLayout    = "15:04"
)
