package integrity

import "strings"

// KeyEvent is a keydown as seen by the page at the capture phase.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

// BlockedChords are suppressed before the browser acts on them: tab switching,
// window/tab closing or opening, fullscreen toggling and escape combinations.
var BlockedChords = []string{
	"Alt+Tab",
	"Ctrl+Tab",
	"Ctrl+Shift+Tab",
	"Meta+Tab",
	"Ctrl+W",
	"Ctrl+N",
	"Ctrl+T",
	"Alt+F4",
	"F11",
	"Escape",
	"Ctrl+Escape",
	"Meta+Escape",
}

var blocked = func() map[string]struct{} {
	set := make(map[string]struct{}, len(BlockedChords))
	for _, c := range BlockedChords {
		set[c] = struct{}{}
	}
	return set
}()

func normalizeKey(key string) string {
	switch k := strings.TrimSpace(key); strings.ToLower(k) {
	case "esc", "escape":
		return "Escape"
	case "tab":
		return "Tab"
	case "":
		return ""
	default:
		if len(k) == 1 {
			return strings.ToUpper(k)
		}
		if (k[0] == 'f' || k[0] == 'F') && len(k) <= 3 {
			return "F" + k[1:]
		}
		return k
	}
}

// Chord renders the event as "Ctrl+Alt+Shift+Meta+Key", modifiers in that order.
func (ev KeyEvent) Chord() string {
	parts := make([]string, 0, 5)
	if ev.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if ev.Alt {
		parts = append(parts, "Alt")
	}
	if ev.Shift {
		parts = append(parts, "Shift")
	}
	if ev.Meta {
		parts = append(parts, "Meta")
	}
	if k := normalizeKey(ev.Key); k != "" {
		parts = append(parts, k)
	}
	return strings.Join(parts, "+")
}

// Suppress reports whether the page must prevent the default action of ev.
// Suppression is not a violation: it prevents one.
func Suppress(ev KeyEvent) bool {
	_, ok := blocked[ev.Chord()]
	return ok
}
