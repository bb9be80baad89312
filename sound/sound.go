// Package sound manages the cues played when a recording starts and stops.
package sound

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"whisgo/log"
	"whisgo/store"
)

type Slot string

const (
	Start Slot = "start"
	Stop  Slot = "stop"
)

func ParseSlot(s string) (Slot, error) {
	switch Slot(strings.ToLower(s)) {
	case Start:
		return Start, nil
	case Stop:
		return Stop, nil
	}
	return "", fmt.Errorf("unknown sound slot %q (want start or stop)", s)
}

func (s Slot) key() string {
	if s == Start {
		return store.KeyStartSound
	}
	return store.KeyStopSound
}

const (
	BuiltinStart = "builtin:start"
	BuiltinStop  = "builtin:stop"
)

type Effect struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	IsDefault bool   `json:"isDefault"`
}

func DefaultEffect(slot Slot) Effect {
	if slot == Start {
		return Effect{Name: "Default Start", URL: BuiltinStart, IsDefault: true}
	}
	return Effect{Name: "Default Stop", URL: BuiltinStop, IsDefault: true}
}

func (e Effect) validate() error {
	if e.Name == "" {
		return errors.New("missing name")
	}
	switch {
	case e.URL == BuiltinStart, e.URL == BuiltinStop:
		return nil
	case strings.HasPrefix(e.URL, "file://"):
		return nil
	}
	return fmt.Errorf("unsupported url %q", e.URL)
}

// Prefs holds the playback switch and the two cue slots, mirrored to a KV.
type Prefs struct {
	kv     store.KV
	dir    string
	player Player

	mu      sync.Mutex
	enabled bool
	effects map[Slot]Effect
	wg      sync.WaitGroup
}

// New returns preferences backed by kv with custom sounds copied into dir.
// Call Load to read the persisted values.
func New(kv store.KV, dir string, player Player) *Prefs {
	return &Prefs{
		kv:      kv,
		dir:     dir,
		player:  player,
		enabled: true,
		effects: map[Slot]Effect{Start: DefaultEffect(Start), Stop: DefaultEffect(Stop)},
	}
}

// Load reads the persisted preferences. Any malformed value puts both
// slots back to their defaults.
func (p *Prefs) Load() {
	enabled, errEnabled := store.LoadJSON(p.kv, store.KeyPlaybackEnabled, true, nil)
	start, errStart := store.LoadJSON(p.kv, store.KeyStartSound, DefaultEffect(Start), Effect.validate)
	stop, errStop := store.LoadJSON(p.kv, store.KeyStopSound, DefaultEffect(Stop), Effect.validate)

	p.mu.Lock()
	p.enabled = enabled
	p.effects[Start] = start
	p.effects[Stop] = stop
	p.mu.Unlock()

	if err := errors.Join(errEnabled, errStart, errStop); err != nil {
		log.Errorf("failed to load sound settings: %v", err)
		p.Reset()
	}
}

func (p *Prefs) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *Prefs) SetEnabled(v bool) {
	p.mu.Lock()
	p.enabled = v
	p.mu.Unlock()
	p.save()
}

func (p *Prefs) Effect(slot Slot) Effect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.effects[slot]
}

// Set installs the WAV file at path as the cue for slot. The file is
// validated and copied so later edits to the original have no effect.
func (p *Prefs) Set(slot Slot, path string) (Effect, error) {
	if _, err := DecodeWAVFile(path); err != nil {
		return Effect{}, err
	}
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return Effect{}, fmt.Errorf("create sound directory: %w", err)
	}
	dst := filepath.Join(p.dir, uuid.NewString()+".wav")
	if err := copyFile(path, dst); err != nil {
		return Effect{}, err
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		return Effect{}, err
	}

	e := Effect{
		Name:      filepath.Base(path),
		URL:       (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		IsDefault: false,
	}
	p.mu.Lock()
	old := p.effects[slot]
	p.effects[slot] = e
	p.mu.Unlock()
	p.save()
	p.removeCopy(old)
	return e, nil
}

// Reset puts both slots back to the built-in cues.
func (p *Prefs) Reset() {
	p.mu.Lock()
	old := []Effect{p.effects[Start], p.effects[Stop]}
	p.effects[Start] = DefaultEffect(Start)
	p.effects[Stop] = DefaultEffect(Stop)
	p.mu.Unlock()
	p.save()
	for _, e := range old {
		p.removeCopy(e)
	}
}

// Play starts the cue for slot in the background. It does nothing when
// playback is disabled; failures are only logged.
func (p *Prefs) Play(slot Slot) {
	p.mu.Lock()
	enabled := p.enabled
	e := p.effects[slot]
	p.mu.Unlock()
	if !enabled || p.player == nil {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		clip, err := Resolve(e.URL)
		if err != nil {
			log.Errorf("failed to play sound %s: %v", e.Name, err)
			return
		}
		if err := p.player.Play(clip); err != nil {
			log.Errorf("failed to play sound %s: %v", e.Name, err)
		}
	}()
}

// Wait blocks until cues started by Play have finished.
func (p *Prefs) Wait() {
	p.wg.Wait()
}

func (p *Prefs) save() {
	p.mu.Lock()
	enabled := p.enabled
	start, stop := p.effects[Start], p.effects[Stop]
	p.mu.Unlock()

	err := errors.Join(
		store.SaveJSON(p.kv, store.KeyPlaybackEnabled, enabled),
		store.SaveJSON(p.kv, Start.key(), start),
		store.SaveJSON(p.kv, Stop.key(), stop),
	)
	if err != nil {
		log.Errorf("failed to save sound settings: %v", err)
	}
}

// removeCopy deletes a custom sound this package copied into dir.
func (p *Prefs) removeCopy(e Effect) {
	if e.IsDefault {
		return
	}
	path, ok := filePath(e.URL)
	dir, err := filepath.Abs(p.dir)
	if !ok || err != nil || filepath.Dir(path) != dir {
		return
	}
	p.mu.Lock()
	inUse := p.effects[Start].URL == e.URL || p.effects[Stop].URL == e.URL
	p.mu.Unlock()
	if inUse {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("remove old sound %s: %v", path, err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy sound: %w", err)
	}
	return out.Close()
}
