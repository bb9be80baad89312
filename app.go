package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"whisgo/audio"
	"whisgo/clipboard"
	"whisgo/config"
	"whisgo/history"
	"whisgo/log"
	"whisgo/recorder"
	"whisgo/sound"
	"whisgo/store"
	"whisgo/transcriber"
)

type globalOptions struct {
	configPath string
	logPath    string
	dataDir    string
}

// app holds the pieces every command shares. Audio parts are filled in by
// attachAudio for the commands that record.
type app struct {
	cfg     *config.Config
	kv      store.KV
	history *history.Store
	sounds  *sound.Prefs
	client  *transcriber.Client

	registry *audio.Registry
	rec      *recorder.Manager
	pipeline *Pipeline
}

func openApp(opts *globalOptions) (*app, error) {
	cfg, err := config.Load(config.Path(opts.configPath))
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		dir, err := filepath.Abs(opts.dataDir)
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}

	logPath, err := log.ResolveDir(opts.logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	log.SetMaxSize(cfg.LogMaxSizeMB)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	kv, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	var player sound.Player
	if p, err := sound.NewPlayer(); err != nil {
		log.Warnf("sound playback unavailable: %v", err)
	} else {
		player = p
	}
	sounds := sound.New(kv, cfg.SoundDir(), player)
	sounds.Load()

	return &app{
		cfg:     cfg,
		kv:      kv,
		history: history.New(kv),
		sounds:  sounds,
		client:  transcriber.NewClient(cfg.Endpoint, cfg.Language),
	}, nil
}

// attachAudio wires the device registry, recorder and pipeline to actx.
func (a *app) attachAudio(actx audio.Context) error {
	a.registry = audio.NewRegistry(actx, a.kv)
	if err := a.registry.Init(); err != nil {
		return err
	}
	a.rec = recorder.NewManager(actx)

	var copyFn func(string) error
	if a.cfg.CopyToClipboard {
		copyFn = clipboard.Copy
	}
	a.pipeline = &Pipeline{
		rec:         a.rec,
		devices:     a.registry,
		cues:        a.sounds,
		history:     a.history,
		transcriber: a.client,
		kv:          a.kv,
		copy:        copyFn,
		minDuration: a.cfg.MinRecording(),
	}
	return nil
}

func (a *app) warm(ctx context.Context) {
	if transcriber.LoadSettings(a.kv).APIKey != "" {
		go a.client.Warm(ctx)
	}
}

func (a *app) Close() {
	if a.rec != nil {
		a.rec.Close()
	}
	if a.pipeline != nil && a.pipeline.Count() > 0 {
		log.SessionEnd(a.pipeline.Count())
	}
	a.sounds.Wait()
	if err := a.kv.Close(); err != nil {
		log.Errorf("close store: %v", err)
	}
	log.Close()
}
