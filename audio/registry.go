package audio

import (
	"fmt"
	"sync"

	"whisgo/log"
	"whisgo/store"
)

// Registry enumerates capture devices and remembers the user's choice
// across runs under store.KeySelectedDevice.
type Registry struct {
	ctx Context
	kv  store.KV

	mu       sync.Mutex
	devices  []DeviceInfo
	selected *DeviceInfo
}

func NewRegistry(ctx Context, kv store.KV) *Registry {
	return &Registry{ctx: ctx, kv: kv}
}

// List queries the backend and caches the result for Select.
func (r *Registry) List() ([]DeviceInfo, error) {
	devices, err := r.ctx.Devices()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.devices = devices
	r.mu.Unlock()
	return append([]DeviceInfo(nil), devices...), nil
}

// Select makes id the current device and persists it. The id must be part
// of the most recent enumeration.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	enumerated := r.devices != nil
	r.mu.Unlock()
	if !enumerated {
		if _, err := r.List(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	var found *DeviceInfo
	for i := range r.devices {
		if r.devices[i].ID == id {
			d := r.devices[i]
			found = &d
			break
		}
	}
	if found == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	r.selected = found
	r.mu.Unlock()

	if err := r.kv.Set(store.KeySelectedDevice, id); err != nil {
		return fmt.Errorf("persist device selection: %w", err)
	}
	log.Infof("device selected: %s (%s)", found.Name, found.ID)
	return nil
}

// Init restores the selection: the persisted id when it is still present,
// otherwise the first device. With no devices the selection stays empty
// and capture falls back to the platform default.
func (r *Registry) Init() error {
	devices, err := r.List()
	if err != nil {
		return err
	}

	saved, _, err := r.kv.Get(store.KeySelectedDevice)
	if err != nil {
		log.Warnf("read saved device: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = nil
	if len(devices) == 0 {
		return nil
	}
	if saved != "" {
		for i := range devices {
			if devices[i].ID == saved {
				d := devices[i]
				r.selected = &d
				return nil
			}
		}
		log.Warnf("saved device %s no longer present", saved)
	}
	d := devices[0]
	r.selected = &d
	return nil
}

// Selected returns the current device, or nil for the platform default.
func (r *Registry) Selected() *DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return nil
	}
	d := *r.selected
	return &d
}

// SelectedID is the id of the current device, empty for the default.
func (r *Registry) SelectedID() string {
	if d := r.Selected(); d != nil {
		return d.ID
	}
	return ""
}

// Lookup finds id in the latest enumeration.
func (r *Registry) Lookup(id string) (*DeviceInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.devices {
		if r.devices[i].ID == id {
			d := r.devices[i]
			return &d, true
		}
	}
	return nil, false
}

func (r *Registry) Context() Context {
	return r.ctx
}
