package audio

import (
	"fmt"
	"sync"
)

// FakeContext is a scripted backend: each capture it hands out replays
// Fragments on Start, and enumeration/acquisition errors are injectable.
type FakeContext struct {
	mu         sync.Mutex
	devices    []DeviceInfo
	devicesErr error
	captureErr error
	fragments  [][]byte
	captures   []*FakeCapture
}

func NewFakeContext(devices ...DeviceInfo) *FakeContext {
	return &FakeContext{devices: devices}
}

func (f *FakeContext) SetDevices(devices ...DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

func (f *FakeContext) FailDevices(err error) {
	f.mu.Lock()
	f.devicesErr = err
	f.mu.Unlock()
}

func (f *FakeContext) FailCapture(err error) {
	f.mu.Lock()
	f.captureErr = err
	f.mu.Unlock()
}

// Script sets the fragments every subsequent capture delivers on Start.
func (f *FakeContext) Script(fragments ...[]byte) {
	f.mu.Lock()
	f.fragments = fragments
	f.mu.Unlock()
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devicesErr != nil {
		return nil, f.devicesErr
	}
	return append([]DeviceInfo(nil), f.devices...), nil
}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	if device != nil {
		found := false
		for _, d := range f.devices {
			if d.ID == device.ID {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, device.ID)
		}
	}
	c := &FakeCapture{device: device, fragments: f.fragments}
	f.captures = append(f.captures, c)
	return c, nil
}

func (f *FakeContext) Close() {}

// Captures returns every handle acquired so far, oldest first.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

func (f *FakeContext) LastCapture() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.captures) == 0 {
		return nil
	}
	return f.captures[len(f.captures)-1]
}

type FakeCapture struct {
	device    *DeviceInfo
	fragments [][]byte

	mu       sync.Mutex
	cb       DataCallback
	errCb    ErrorCallback
	started  bool
	running  bool
	closed   bool
	StartErr error
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) SetErrorCallback(cb ErrorCallback) {
	f.mu.Lock()
	f.errCb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string {
	if f.device != nil {
		return f.device.Name
	}
	return "fake"
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	if f.StartErr != nil {
		f.mu.Unlock()
		return f.StartErr
	}
	f.started = true
	f.running = true
	fragments := f.fragments
	f.mu.Unlock()

	for _, frag := range fragments {
		f.Emit(frag)
	}
	return nil
}

// Emit delivers one fragment to the data callback, as the audio thread
// would. It is delivered even after Stop to mimic a late callback.
func (f *FakeCapture) Emit(data []byte) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(data, uint32(len(data)/2))
	}
}

// Fail reports a mid-stream capture failure.
func (f *FakeCapture) Fail(err error) {
	f.mu.Lock()
	cb := f.errCb
	f.running = false
	f.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
}

func (f *FakeCapture) Close() {
	f.mu.Lock()
	f.running = false
	f.closed = true
	f.mu.Unlock()
}

func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeCapture) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
