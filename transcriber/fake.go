package transcriber

import (
	"context"
	"fmt"
	"sync"

	"whisgo/recorder"
)

// Fake returns a fixed text or error and records what it was asked.
type Fake struct {
	text string
	err  error

	mu    sync.Mutex
	calls []FakeCall
}

type FakeCall struct {
	Audio      *recorder.Audio
	Credential string
	Model      string
}

func NewFake(text string, err error) *Fake {
	return &Fake{text: text, err: err}
}

func (f *Fake) Transcribe(_ context.Context, audio *recorder.Audio, credential, model string) (string, error) {
	if credential == "" {
		return "", ErrMissingCredential
	}
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Audio: audio, Credential: credential, Model: model})
	f.mu.Unlock()
	if f.err != nil {
		return "", fmt.Errorf("fake transcriber error: %w", f.err)
	}
	return f.text, nil
}

func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
