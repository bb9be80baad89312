package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisgo/audio"
	"whisgo/history"
	"whisgo/recorder"
	"whisgo/sound"
	"whisgo/store"
	"whisgo/transcriber"
)

type recordedCues struct {
	mu    sync.Mutex
	slots []sound.Slot
}

func (c *recordedCues) Play(slot sound.Slot) {
	c.mu.Lock()
	c.slots = append(c.slots, slot)
	c.mu.Unlock()
}

type fixedDevice string

func (d fixedDevice) SelectedID() string { return string(d) }

type pipelineFixture struct {
	p      *Pipeline
	actx   *audio.FakeContext
	kv     store.KV
	cues   *recordedCues
	fake   *transcriber.Fake
	copied []string
}

// 32 bytes of 16 kHz mono L16 is one millisecond.
func pcmFor(d time.Duration) []byte {
	return make([]byte, int(d/time.Millisecond)*32)
}

func newPipelineFixture(t *testing.T, text string, err error) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		actx: audio.NewFakeContext(audio.DeviceInfo{ID: "mic", Name: "USB Mic"}),
		kv:   store.NewMemory(),
		cues: &recordedCues{},
		fake: transcriber.NewFake(text, err),
	}
	require.NoError(t, transcriber.SaveAPIKey(f.kv, "gsk_key"))
	f.p = &Pipeline{
		rec:         recorder.NewManager(f.actx),
		devices:     fixedDevice("mic"),
		cues:        f.cues,
		history:     history.New(f.kv),
		transcriber: f.fake,
		kv:          f.kv,
		copy: func(s string) error {
			f.copied = append(f.copied, s)
			return nil
		},
		minDuration: 100 * time.Millisecond,
	}
	return f
}

func TestPipelineTranscribes(t *testing.T) {
	f := newPipelineFixture(t, "buy milk", nil)
	f.actx.Script(pcmFor(150 * time.Millisecond))

	require.NoError(t, f.p.StartRecording(context.Background()))
	out, err := f.p.StopAndTranscribe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "buy milk", out.Entry.Text)
	assert.True(t, out.Copied)
	assert.Equal(t, []string{"buy milk"}, f.copied)
	assert.Equal(t, []sound.Slot{sound.Start, sound.Stop}, f.cues.slots)
	assert.Equal(t, 1, f.p.Count())

	latest, ok := f.p.history.Latest()
	require.True(t, ok)
	assert.Equal(t, out.Entry, latest)

	calls := f.fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, transcriber.DefaultModel, calls[0].Model)
}

func TestPipelineSkipsShortRecording(t *testing.T) {
	f := newPipelineFixture(t, "never", nil)
	f.actx.Script(pcmFor(50 * time.Millisecond))

	require.NoError(t, f.p.StartRecording(context.Background()))
	out, err := f.p.StopAndTranscribe(context.Background())
	require.NoError(t, err)

	assert.True(t, out.Skipped)
	assert.Empty(t, f.fake.Calls())
	assert.Equal(t, 0, f.p.history.Len())
}

func TestPipelineNoSpeech(t *testing.T) {
	f := newPipelineFixture(t, "", nil)
	f.actx.Script(pcmFor(200 * time.Millisecond))

	require.NoError(t, f.p.StartRecording(context.Background()))
	out, err := f.p.StopAndTranscribe(context.Background())
	require.NoError(t, err)

	assert.True(t, out.NoSpeech)
	assert.Equal(t, 0, f.p.history.Len())
	assert.Empty(t, f.copied)
}

func TestPipelineMissingCredential(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	f := newPipelineFixture(t, "x", nil)
	require.NoError(t, transcriber.SaveAPIKey(f.kv, ""))
	f.actx.Script(pcmFor(200 * time.Millisecond))

	require.NoError(t, f.p.StartRecording(context.Background()))
	_, err := f.p.StopAndTranscribe(context.Background())
	require.ErrorIs(t, err, transcriber.ErrMissingCredential)
	assert.Equal(t, "API key is not set. Run: whisgo config set-key <key>", userMessage(err))
	assert.Equal(t, 0, f.p.history.Len())
}

func TestPipelineRemoteError(t *testing.T) {
	f := newPipelineFixture(t, "", &transcriber.RemoteError{StatusCode: 429, Message: "Rate limit reached"})
	f.actx.Script(pcmFor(200 * time.Millisecond))

	require.NoError(t, f.p.StartRecording(context.Background()))
	_, err := f.p.StopAndTranscribe(context.Background())
	require.ErrorIs(t, err, transcriber.ErrRemote)
	assert.Equal(t, "Rate limit reached", userMessage(err))
}

func TestPipelineCopyFailureIsNotFatal(t *testing.T) {
	f := newPipelineFixture(t, "hello", nil)
	f.p.copy = func(string) error { return errors.New("no clipboard") }
	f.actx.Script(pcmFor(200 * time.Millisecond))

	require.NoError(t, f.p.StartRecording(context.Background()))
	out, err := f.p.StopAndTranscribe(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Copied)
	assert.Equal(t, "hello", out.Entry.Text)
}

func TestPipelineStartFailure(t *testing.T) {
	f := newPipelineFixture(t, "x", nil)
	f.actx.FailCapture(errors.New("busy"))

	err := f.p.StartRecording(context.Background())
	require.ErrorIs(t, err, recorder.ErrDeviceUnavailable)
	assert.Contains(t, userMessage(err), "Microphone unavailable")
	assert.Empty(t, f.cues.slots)
}

func TestPipelineStopWithoutStart(t *testing.T) {
	f := newPipelineFixture(t, "x", nil)
	_, err := f.p.StopAndTranscribe(context.Background())
	assert.ErrorIs(t, err, recorder.ErrInvalidState)
	assert.Empty(t, f.cues.slots)
}

func TestPipelineCancel(t *testing.T) {
	f := newPipelineFixture(t, "x", nil)
	require.NoError(t, f.p.StartRecording(context.Background()))
	f.p.Cancel()

	assert.NotEqual(t, recorder.Recording, f.p.rec.State())
	assert.True(t, f.actx.LastCapture().Closed())
	assert.Empty(t, f.fake.Calls())
}
