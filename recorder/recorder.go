// Package recorder owns the microphone for the duration of one recording
// and turns the fragments it delivers into a single audio object.
package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"whisgo/audio"
	"whisgo/log"
)

// MimeType describes Audio.Data: raw little-endian PCM16, mono, 16 kHz.
const MimeType = "audio/L16;rate=16000;channels=1"

var (
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrInvalidState      = errors.New("invalid recorder state")
)

type State int

const (
	Idle State = iota
	Recording
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	case Failed:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Audio struct {
	Data       []byte
	MimeType   string
	SampleRate int
	Channels   int
	Fragments  int
}

func (a *Audio) Duration() time.Duration {
	bytesPerSec := a.SampleRate * a.Channels * 2
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(len(a.Data)) * time.Second / time.Duration(bytesPerSec)
}

// Manager runs at most one recording session at a time.
type Manager struct {
	backend audio.Context
	config  audio.CaptureConfig

	mu        sync.Mutex
	state     State
	starting  bool
	gen       uint64
	capture   audio.CaptureDevice
	fragments [][]byte
	result    *Audio
	err       error
	startedAt time.Time
	elapsed   time.Duration
	level     float64
}

func NewManager(backend audio.Context) *Manager {
	return &Manager{backend: backend, config: audio.DefaultCaptureConfig()}
}

// Start acquires the device with the given id (empty for the platform
// default) and begins buffering fragments.
func (m *Manager) Start(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	if m.state == Recording || m.starting {
		m.mu.Unlock()
		return fmt.Errorf("%w: already recording", ErrInvalidState)
	}
	m.starting = true
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	capture, err := m.acquire(ctx, deviceID, gen)
	if err != nil {
		m.mu.Lock()
		m.starting = false
		m.state = Idle
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	m.mu.Lock()
	m.starting = false
	if m.gen != gen {
		// Close ran while the device was being acquired
		m.mu.Unlock()
		release(capture)
		return fmt.Errorf("%w: closed during start", ErrInvalidState)
	}
	m.state = Recording
	m.capture = capture
	m.fragments = nil
	m.result = nil
	m.err = nil
	m.level = 0
	m.elapsed = 0
	m.startedAt = time.Now()
	m.mu.Unlock()

	if err := capture.Start(); err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.state = Idle
			m.capture = nil
		}
		m.mu.Unlock()
		release(capture)
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	log.Infof("recording started on %s", capture.DeviceName())
	return nil
}

func (m *Manager) acquire(ctx context.Context, deviceID string, gen uint64) (audio.CaptureDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var device *audio.DeviceInfo
	if deviceID != "" {
		devices, err := m.backend.Devices()
		if err != nil {
			return nil, err
		}
		for i := range devices {
			if devices[i].ID == deviceID {
				device = &devices[i]
				break
			}
		}
		if device == nil {
			return nil, fmt.Errorf("%w: %s", audio.ErrUnknownDevice, deviceID)
		}
	}

	capture, err := m.backend.NewCapture(device, m.config)
	if err != nil {
		return nil, err
	}
	capture.SetCallback(func(data []byte, _ uint32) {
		m.append(gen, data)
	})
	capture.SetErrorCallback(func(err error) {
		m.fail(gen, err)
	})
	return capture, nil
}

func (m *Manager) append(gen uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.state != Recording {
		return
	}
	frag := make([]byte, len(data))
	copy(frag, data)
	m.fragments = append(m.fragments, frag)
	m.level = rms(frag)
}

func (m *Manager) fail(gen uint64, err error) {
	m.mu.Lock()
	if m.gen != gen || m.state != Recording {
		m.mu.Unlock()
		return
	}
	capture := m.capture
	m.capture = nil
	m.state = Failed
	m.err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	m.elapsed = time.Since(m.startedAt)
	m.fragments = nil
	m.mu.Unlock()

	log.Errorf("capture failed: %v", err)
	// the callback may run on the backend's own goroutine, which Stop waits on
	go release(capture)
}

// Stop ends the session and returns the concatenated audio, which may be
// empty. The capture handle is released whatever the outcome.
func (m *Manager) Stop() (*Audio, error) {
	m.mu.Lock()
	if m.state != Recording {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: not currently recording", ErrInvalidState)
	}

	size := 0
	for _, f := range m.fragments {
		size += len(f)
	}
	data := make([]byte, 0, size)
	for _, f := range m.fragments {
		data = append(data, f...)
	}
	result := &Audio{
		Data:       data,
		MimeType:   MimeType,
		SampleRate: int(m.config.SampleRate),
		Channels:   int(m.config.Channels),
		Fragments:  len(m.fragments),
	}
	capture := m.capture
	m.capture = nil
	m.result = result
	m.fragments = nil
	m.state = Stopped
	m.elapsed = time.Since(m.startedAt)
	m.mu.Unlock()

	release(capture)
	return result, nil
}

// Close releases any held device. Safe to call repeatedly.
func (m *Manager) Close() {
	m.mu.Lock()
	capture := m.capture
	m.capture = nil
	if m.state == Recording {
		m.state = Idle
		m.fragments = nil
	}
	m.gen++
	m.mu.Unlock()

	release(capture)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err is the capture failure that moved the manager to Failed.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Result is the audio produced by the last Stop, nil before then.
func (m *Manager) Result() *Audio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

func (m *Manager) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Recording {
		return time.Since(m.startedAt)
	}
	return m.elapsed
}

// Level is the RMS of the most recent fragment, in [0, 1].
func (m *Manager) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Recording {
		return 0
	}
	return m.level
}

func (m *Manager) DeviceName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capture == nil {
		return ""
	}
	return m.capture.DeviceName()
}

func release(c audio.CaptureDevice) {
	if c == nil {
		return
	}
	c.ClearCallback()
	c.Stop()
	c.Close()
}

func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum/float64(n)) / 32768
}
