// Package tgui provides small Telegram UI helpers:
//   - Inline keyboard builders
//   - Callback data helpers (scope:action:payload)
//   - A message builder safe for ParseMode="HTML" (auto escaping)
package tgui
