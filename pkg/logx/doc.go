// Package logx is remindbot's structured logging layer.
//
// Logger wraps zerolog so components can carry fixed fields (comp, rid, owner)
// and keep logging across config reloads:
//   - console output stays human-readable (short timestamp + file:line caller)
//   - the optional file sink writes JSON lines
//   - the optional ops-chat sink forwards warnings to a Telegram chat,
//     filtered by level and rate limited
package logx
