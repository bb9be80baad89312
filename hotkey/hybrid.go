package hotkey

import (
	"context"
	"time"
)

type Mode string

const (
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
)

// Event asks the recorder to start or stop. Mode is set on Stop and tells
// how the recording was held.
type Event struct {
	Start bool
	Mode  Mode
}

// Hybrid turns raw key presses into start/stop events: a short tap starts
// a recording that the next press ends, holding past longPress records
// until release.
type Hybrid struct {
	events chan Event
}

func NewHybrid(ctx context.Context, hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{events: make(chan Event, 2)}
	go h.run(ctx, hk, longPress)
	return h
}

func (h *Hybrid) Events() <-chan Event { return h.events }

func (h *Hybrid) run(ctx context.Context, hk Hotkey, longPress time.Duration) {
	defer close(h.events)
	wait := func(ch <-chan struct{}) bool {
		select {
		case <-ch:
			return true
		case <-ctx.Done():
			return false
		}
	}
	send := func(ev Event) bool {
		select {
		case h.events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		if !wait(hk.Keydown()) || !send(Event{Start: true}) {
			return
		}
		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			if !wait(hk.Keyup()) || !send(Event{Mode: ModePTT}) {
				return
			}
			continue
		case <-hk.Keyup():
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return
		}
		// toggled on; the next press ends it on release
		if !wait(hk.Keydown()) || !wait(hk.Keyup()) || !send(Event{Mode: ModeToggle}) {
			return
		}
	}
}
