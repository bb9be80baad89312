// Package hotkey listens for a system-wide key combination while the
// application runs in the background of another window.
package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Combo is a key plus the modifiers that must be held with it.
type Combo struct {
	Ctrl  bool
	Shift bool
	Key   string // "space" or a single letter
}

var DefaultCombo = Combo{Ctrl: true, Shift: true, Key: "space"}

// ParseCombo reads combinations like "ctrl+shift+space" or "ctrl+r".
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		last := i == len(parts)-1
		switch {
		case p == "ctrl" && !last:
			c.Ctrl = true
		case p == "shift" && !last:
			c.Shift = true
		case last && isKey(p):
			c.Key = p
		default:
			return Combo{}, fmt.Errorf("invalid hotkey %q", s)
		}
	}
	if !c.Ctrl && !c.Shift {
		return Combo{}, fmt.Errorf("invalid hotkey %q: needs ctrl or shift", s)
	}
	return c, nil
}

func isKey(p string) bool {
	if p == "space" {
		return true
	}
	return len(p) == 1 && p[0] >= 'a' && p[0] <= 'z'
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if c.Shift {
		parts = append(parts, "Shift")
	}
	return strings.Join(append(parts, strings.ToUpper(c.Key[:1])+c.Key[1:]), "+")
}
