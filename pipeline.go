package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"whisgo/history"
	"whisgo/log"
	"whisgo/recorder"
	"whisgo/sound"
	"whisgo/store"
	"whisgo/transcriber"
)

type cuePlayer interface {
	Play(slot sound.Slot)
}

type deviceSource interface {
	SelectedID() string
}

// Outcome describes one finished recording.
type Outcome struct {
	Entry    history.Transcription
	Audio    *recorder.Audio
	Skipped  bool // shorter than the minimum, never uploaded
	NoSpeech bool // uploaded, but the service heard nothing
	Copied   bool
}

// Pipeline ties one recorder to the transcription and history steps that
// follow a stop.
type Pipeline struct {
	rec         *recorder.Manager
	devices     deviceSource
	cues        cuePlayer
	history     *history.Store
	transcriber transcriber.Transcriber
	kv          store.KV
	copy        func(string) error
	minDuration time.Duration

	mu    sync.Mutex
	count int
}

func (p *Pipeline) StartRecording(ctx context.Context) error {
	if err := p.rec.Start(ctx, p.devices.SelectedID()); err != nil {
		return err
	}
	p.cues.Play(sound.Start)
	return nil
}

// StopAndTranscribe ends the current recording and, unless it is too short,
// uploads it and records the text in history.
func (p *Pipeline) StopAndTranscribe(ctx context.Context) (Outcome, error) {
	device := p.rec.DeviceName()
	audio, err := p.rec.Stop()
	if err != nil {
		return Outcome{}, err
	}
	p.cues.Play(sound.Stop)

	out := Outcome{Audio: audio}
	log.RecordingStopped(device, audio.Duration().Seconds(), audio.Fragments)
	if audio.Duration() < p.minDuration {
		log.Infof("recording too short (%s), skipped", audio.Duration())
		out.Skipped = true
		return out, nil
	}

	settings := transcriber.LoadSettings(p.kv)
	text, err := p.transcriber.Transcribe(ctx, audio, settings.APIKey, settings.Model)
	if err != nil {
		log.Errorf("transcription error: %v", err)
		return out, err
	}
	if text == "" {
		out.NoSpeech = true
		log.Info("no_speech")
		return out, nil
	}

	out.Entry = p.history.Add(text)
	log.TranscriptionText(text)
	p.mu.Lock()
	p.count++
	p.mu.Unlock()

	if p.copy != nil {
		if err := p.copy(text); err != nil {
			log.Warnf("clipboard copy failed: %v", err)
		} else {
			out.Copied = true
		}
	}
	return out, nil
}

// Cancel drops an in-progress recording without transcribing it.
func (p *Pipeline) Cancel() {
	if p.rec.State() == recorder.Recording {
		p.rec.Close()
		log.Info("recording cancelled")
	}
}

func (p *Pipeline) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// userMessage renders pipeline errors the way they are shown to the user.
func userMessage(err error) string {
	var remote *transcriber.RemoteError
	switch {
	case errors.Is(err, transcriber.ErrMissingCredential):
		return "API key is not set. Run: whisgo config set-key <key>"
	case errors.As(err, &remote):
		return remote.Message
	case errors.Is(err, recorder.ErrDeviceUnavailable):
		return fmt.Sprintf("Microphone unavailable: %v", err)
	}
	return err.Error()
}
