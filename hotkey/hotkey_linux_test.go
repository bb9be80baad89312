//go:build linux

package hotkey

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func events(t *testing.T, evs ...inputEvent) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	for _, ev := range evs {
		if err := binary.Write(&buf, binary.LittleEndian, ev); err != nil {
			t.Fatal(err)
		}
	}
	return bytes.NewReader(buf.Bytes())
}

func key(code uint16, value int32) inputEvent {
	return inputEvent{Type: evKey, Code: code, Value: value}
}

func received(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

func TestWatchCombo(t *testing.T) {
	h := New(DefaultCombo).(*evdevHotkey)
	h.watch(events(t,
		key(keyLCtrl, keyPress),
		key(keyLShift, keyPress),
		key(keySpace, keyPress),
		key(keySpace, 2), // autorepeat
		key(keySpace, keyRelease),
	))
	if !received(h.Keydown()) {
		t.Error("keydown not signalled")
	}
	if !received(h.Keyup()) {
		t.Error("keyup not signalled")
	}
}

func TestWatchNeedsModifiers(t *testing.T) {
	h := New(DefaultCombo).(*evdevHotkey)
	h.watch(events(t,
		key(keyLCtrl, keyPress),
		key(keyLCtrl, keyRelease),
		key(keyRShift, keyPress),
		key(keySpace, keyPress),
		key(keySpace, keyRelease),
	))
	if received(h.Keydown()) {
		t.Error("keydown without ctrl")
	}
}

func TestWatchLetter(t *testing.T) {
	h := New(Combo{Ctrl: true, Key: "r"}).(*evdevHotkey)
	if h.code != 19 {
		t.Fatalf("code for r = %d, want 19", h.code)
	}
	h.watch(events(t,
		key(keyRCtrl, keyPress),
		key(19, keyPress),
	))
	if !received(h.Keydown()) {
		t.Error("keydown not signalled")
	}
}
