package hotkey

import (
	"context"
	"testing"
	"time"
)

func nextEvent(t *testing.T, hy *Hybrid) Event {
	t.Helper()
	select {
	case ev := <-hy.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func noEvent(t *testing.T, hy *Hybrid, d time.Duration) {
	t.Helper()
	select {
	case ev := <-hy.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(d):
	}
}

func TestHybridLongPress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := NewFake()
	threshold := 50 * time.Millisecond
	hy := NewHybrid(ctx, fk, threshold)

	fk.SimKeydown()
	if ev := nextEvent(t, hy); !ev.Start {
		t.Fatalf("got %+v, want start", ev)
	}
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	if ev := nextEvent(t, hy); ev.Start || ev.Mode != ModePTT {
		t.Fatalf("got %+v, want ptt stop", ev)
	}
}

func TestHybridTapToggles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := NewFake()
	hy := NewHybrid(ctx, fk, 200*time.Millisecond)

	fk.SimKeydown()
	nextEvent(t, hy)
	fk.SimKeyup()
	noEvent(t, hy, 30*time.Millisecond)

	fk.SimKeydown()
	noEvent(t, hy, 30*time.Millisecond)
	fk.SimKeyup()
	if ev := nextEvent(t, hy); ev.Start || ev.Mode != ModeToggle {
		t.Fatalf("got %+v, want toggle stop", ev)
	}

	// ready for the next recording
	fk.SimKeydown()
	if ev := nextEvent(t, hy); !ev.Start {
		t.Fatalf("got %+v, want start", ev)
	}
}

func TestHybridClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hy := NewHybrid(ctx, NewFake(), time.Second)
	cancel()
	select {
	case _, ok := <-hy.Events():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("events not closed after cancel")
	}
}

func TestParseCombo(t *testing.T) {
	tests := []struct {
		in      string
		want    Combo
		wantErr bool
	}{
		{in: "ctrl+shift+space", want: DefaultCombo},
		{in: " Ctrl+R ", want: Combo{Ctrl: true, Key: "r"}},
		{in: "shift+z", want: Combo{Shift: true, Key: "z"}},
		{in: "space", wantErr: true},
		{in: "ctrl+alt+space", wantErr: true},
		{in: "ctrl+f1", wantErr: true},
		{in: "ctrl+", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCombo(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCombo(%q) = %+v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComboString(t *testing.T) {
	if got := DefaultCombo.String(); got != "Ctrl+Shift+Space" {
		t.Errorf("got %q", got)
	}
	if got := (Combo{Ctrl: true, Key: "r"}).String(); got != "Ctrl+R" {
		t.Errorf("got %q", got)
	}
}
