//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// inputEvent mirrors struct input_event on 64-bit kernels.
type inputEvent struct {
	Sec, Usec int64
	Type      uint16
	Code      uint16
	Value     int32
}

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0

	keyLCtrl  = 29
	keyRCtrl  = 97
	keyLShift = 42
	keyRShift = 54
	keySpace  = 57
)

// evdev codes follow the physical QWERTY rows.
var letterCodes = func() map[byte]uint16 {
	m := map[byte]uint16{}
	for row, start := range map[string]uint16{"qwertyuiop": 16, "asdfghjkl": 30, "zxcvbnm": 44} {
		for i := 0; i < len(row); i++ {
			m[row[i]] = start + uint16(i)
		}
	}
	return m
}()

func keyCode(key string) uint16 {
	if len(key) == 1 {
		return letterCodes[key[0]]
	}
	return keySpace
}

// evdevHotkey reads raw key events from every keyboard under /dev/input,
// which works on both X11 and Wayland but needs the input group.
type evdevHotkey struct {
	combo   Combo
	code    uint16
	keydown chan struct{}
	keyup   chan struct{}

	mu    sync.Mutex
	files []*os.File
	once  sync.Once
}

func New(c Combo) Hotkey {
	return &evdevHotkey{
		combo:   c,
		code:    keyCode(c.Key),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *evdevHotkey) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return errors.New("no keyboard devices found")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.watch(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("cannot open any of %d keyboard(s) (run: sudo usermod -aG input $USER, then re-login)", len(keyboards))
	}
	return nil
}

// watch tracks modifier state for one device; it ends when the file is
// closed by Unregister.
func (h *evdevHotkey) watch(r io.Reader) {
	var ctrl, shift, held bool
	var ev inputEvent
	for {
		if err := binary.Read(r, binary.LittleEndian, &ev); err != nil {
			return
		}
		if ev.Type != evKey {
			continue
		}
		down := ev.Value == keyPress
		up := ev.Value == keyRelease
		switch ev.Code {
		case keyLCtrl, keyRCtrl:
			ctrl = down || (ctrl && !up)
		case keyLShift, keyRShift:
			shift = down || (shift && !up)
		case h.code:
			switch {
			case down && !held && h.modifiersHeld(ctrl, shift):
				held = true
				notify(h.keydown)
			case up && held:
				held = false
				notify(h.keyup)
			}
		}
	}
}

func (h *evdevHotkey) modifiersHeld(ctrl, shift bool) bool {
	return (!h.combo.Ctrl || ctrl) && (!h.combo.Shift || shift)
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *evdevHotkey) Keyup() <-chan struct{}   { return h.keyup }

// findKeyboards lists event devices whose key capability bitmap is wide
// enough to be a full keyboard rather than a power button or lid switch.
func findKeyboards() ([]string, error) {
	caps, err := filepath.Glob("/sys/class/input/event*/device/capabilities/key")
	if err != nil {
		return nil, err
	}
	var keyboards []string
	for _, p := range caps {
		data, err := os.ReadFile(p)
		if err != nil || len(strings.TrimSpace(string(data))) <= 10 {
			continue
		}
		event := filepath.Base(filepath.Dir(filepath.Dir(filepath.Dir(p))))
		keyboards = append(keyboards, filepath.Join("/dev/input", event))
	}
	return keyboards, nil
}
