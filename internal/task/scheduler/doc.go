// Package scheduler arms the three notification phases of every reminder
// and runs recurring housekeeping jobs.
//
// One-shot phases use version-guarded timers. Recurring jobs use robfig/cron.
// Both hand their work to the task engine, or run inline when it is down.
package scheduler
