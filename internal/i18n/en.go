package i18n

// EnMessages English message catalog
var EnMessages = map[string]string{
	// UI (TUI/REPL) - Panel titles
	"panel.chat":      "Chat",
	"panel.selection": "Selection",
	"panel.logs":      "Logs",

	// UI - Status bar
	"status.library":             "Library",
	"status.idle":                "Ready",
	"status.loading":             "Thinking...",
	"status.requires_permission": "Waiting for permission",
	"status.busy":                "Still working on the previous request",

	// UI - Input
	"input.placeholder": "Ask about your photos... (Enter to send)",
	"input.suggestions": "Suggestions: %s",

	// UI - Keybindings (TUI)
	"keys.enter": "enter send",
	"keys.esc":   "esc quit",
	"keys.yn":    "y allow / n deny",

	// Consent
	"consent.title":  "Permission Required",
	"consent.delete": "Move %d photo(s) to the trash?",
	"consent.write":  "Move %d photo(s) to album %q?",
	"consent.prompt": "Allow this action? [y/N]",
	"consent.allow":  "Allow",
	"consent.deny":   "Deny",
	"consent.none":   "Nothing is waiting for permission",

	// Tool messages shown in the transcript
	"tool.search.found":         "Found %d photo(s).",
	"tool.search.unranked":      "Showing %d photo(s) that match the filters.",
	"tool.search.no_candidates": "No photos match those filters.",
	"tool.search.no_match":      "I couldn't find any photos that look like %q.",
	"tool.delete.done":          "Moved %d photo(s) to the trash.",
	"tool.delete.denied":        "Deletion cancelled: permission was not granted.",
	"tool.move.done":            "Moved %d photo(s) to %s.",
	"tool.move.partial":         "Some photos could not be moved to %s.",
	"tool.move.denied":          "Move cancelled: permission was not granted.",
	"tool.collage.done":         "Created a collage from %d photo(s).",
	"tool.filter.done":          "Applied %s to %d photo(s).",
	"tool.cleanup.found":        "Found %d set(s) of duplicates, %d extra cop(ies) in total.",
	"tool.cleanup.none":         "No duplicate photos found.",
	"tool.restore.done":         "Restored %d photo(s).",

	// Errors
	"error.planner":    "Planner error: %s",
	"error.no_actions": "The planner requested an action but did not send one.",
	"error.status":     "The planner returned an unknown status: %s",
	"error.tool":       "Tool error: %s",

	// Commands
	"cmd.help":       "Show available commands",
	"cmd.select":     "Select photos: /select <uri> [uri...]",
	"cmd.clear":      "Clear the current selection",
	"cmd.suggest":    "Send a suggested action: /suggest <n>",
	"cmd.allow":      "Allow the pending request",
	"cmd.deny":       "Deny the pending request",
	"cmd.exit":       "Exit application",
	"cmd.unknown":    "Unknown command: %s",
	"cmd.selected":   "Selected %d photo(s)",
	"cmd.no_suggest": "No suggestion #%s",

	// Session
	"session.new":     "New conversation: %s",
	"session.resumed": "Resumed conversation: %s (%d messages)",

	// Startup
	"startup.welcome":   "photoagent started, library: %s",
	"startup.planner":   "Planner: %s",
	"startup.repl_mode": "Running in REPL mode",
}
