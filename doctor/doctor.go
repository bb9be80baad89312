package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"whisgo/audio"
	"whisgo/clipboard"
	"whisgo/recorder"
	"whisgo/store"
	"whisgo/transcriber"
)

// silentLevel is the RMS below which a test recording counts as silence.
const silentLevel = 0.01

// Env is what the checks run against.
type Env struct {
	OpenAudio   func() (audio.Context, error)
	KV          store.KV
	Transcriber transcriber.Transcriber
	Out         io.Writer
	Record      time.Duration

	// ClipboardAvailable defaults to clipboard.Available.
	ClipboardAvailable func() bool
}

type checker struct {
	env  Env
	out  io.Writer
	step int
	fail bool

	actx     audio.Context
	registry *audio.Registry
	captured *recorder.Audio
}

const totalSteps = 5

// Run executes the diagnostic checks in order and returns an exit code
// (0=all pass, 1=any fail). Checks that depend on a failed one are skipped.
func Run(ctx context.Context, env Env) int {
	out := env.Out
	if out == nil {
		out = os.Stdout
	}
	if env.Record <= 0 {
		env.Record = 3 * time.Second
	}
	if env.ClipboardAvailable == nil {
		env.ClipboardAvailable = clipboard.Available
	}
	c := &checker{env: env, out: out}
	defer func() {
		if c.actx != nil {
			c.actx.Close()
		}
	}()

	fmt.Fprintln(out, "whisgo doctor - system diagnostics")
	fmt.Fprintln(out, "==================================")

	audioOK := c.checkAudio()
	micOK := audioOK && c.checkMicrophone(ctx)
	if !audioOK {
		c.skip("Microphone capture", "no audio backend")
	}
	keyOK := c.checkCredential()
	switch {
	case !micOK:
		c.skip("Transcription", "nothing recorded")
	case !keyOK:
		c.skip("Transcription", "no API key")
	default:
		c.checkTranscription(ctx)
	}
	c.checkClipboard()

	fmt.Fprintln(out)
	if c.fail {
		fmt.Fprintln(out, "Some checks failed. See details above.")
		return 1
	}
	fmt.Fprintln(out, "All checks passed!")
	return 0
}

func (c *checker) header(name string) {
	c.step++
	fmt.Fprintf(c.out, "\n[%d/%d] %s\n", c.step, totalSteps, name)
}

func (c *checker) pass(format string, args ...any) bool {
	fmt.Fprintf(c.out, "  PASS: "+format+"\n", args...)
	return true
}

func (c *checker) failf(format string, args ...any) bool {
	fmt.Fprintf(c.out, "  FAIL: "+format+"\n", args...)
	c.fail = true
	return false
}

func (c *checker) warn(format string, args ...any) {
	fmt.Fprintf(c.out, "  WARN: "+format+"\n", args...)
}

func (c *checker) skip(name, reason string) {
	c.header(name)
	fmt.Fprintf(c.out, "  SKIP: %s\n", reason)
}

func (c *checker) checkAudio() bool {
	c.header("Audio backend")
	actx, err := c.env.OpenAudio()
	if err != nil {
		if errors.Is(err, audio.ErrPermissionDenied) {
			return c.failf("microphone access denied: %v", err)
		}
		return c.failf("cannot connect to audio: %v", err)
	}
	c.actx = actx

	c.registry = audio.NewRegistry(actx, c.env.KV)
	if err := c.registry.Init(); err != nil {
		return c.failf("cannot list devices: %v", err)
	}
	devices, _ := c.registry.List()
	if len(devices) == 0 {
		c.warn("no capture devices listed, the system default will be used")
		return true
	}
	for _, d := range devices {
		mark := " "
		if d.ID == c.registry.SelectedID() {
			mark = "*"
		}
		fmt.Fprintf(c.out, "  %s %s\n", mark, d.Name)
	}
	if d := c.registry.Selected(); d != nil && audio.IsBluetooth(d.Name) {
		c.warn("%s looks like a Bluetooth headset, expect lower quality", d.Name)
	}
	return c.pass("%d capture device(s)", len(devices))
}

func (c *checker) checkMicrophone(ctx context.Context) bool {
	c.header("Microphone capture")
	rec := recorder.NewManager(c.actx)
	defer rec.Close()

	if err := rec.Start(ctx, c.registry.SelectedID()); err != nil {
		return c.failf("%v", err)
	}
	fmt.Fprintf(c.out, "  Speak now, recording %s on %s", c.env.Record, rec.DeviceName())

	var peak float64
	deadline := time.NewTimer(c.env.Record)
	defer deadline.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	peak = rec.Level()
loop:
	for {
		select {
		case <-deadline.C:
			break loop
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return c.failf("interrupted")
		case <-ticker.C:
			if err := rec.Err(); err != nil {
				fmt.Fprintln(c.out)
				return c.failf("capture failed: %v", err)
			}
			peak = max(peak, rec.Level())
			fmt.Fprint(c.out, ".")
		}
	}
	fmt.Fprintln(c.out, " done")

	captured, err := rec.Stop()
	if err != nil {
		return c.failf("%v", err)
	}
	if len(captured.Data) == 0 {
		return c.failf("no audio captured")
	}
	c.captured = captured
	if peak < silentLevel {
		c.warn("input is nearly silent (peak level %.3f), check the microphone gain", peak)
	}
	return c.pass("captured %.1f KB in %d fragments", float64(len(captured.Data))/1024, captured.Fragments)
}

func (c *checker) checkCredential() bool {
	c.header("API key")
	s := transcriber.LoadSettings(c.env.KV)
	if s.APIKey == "" {
		return c.failf("not set, run: whisgo config set-key <key>")
	}
	return c.pass("%s (model %s)", s.MaskedKey(), s.Model)
}

func (c *checker) checkTranscription(ctx context.Context) bool {
	c.header("Transcription")
	s := transcriber.LoadSettings(c.env.KV)
	start := time.Now()
	text, err := c.env.Transcriber.Transcribe(ctx, c.captured, s.APIKey, s.Model)
	if err != nil {
		var remote *transcriber.RemoteError
		if errors.As(err, &remote) && remote.StatusCode == 401 {
			return c.failf("the service rejected the API key")
		}
		return c.failf("%v", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Fprintf(c.out, "  Transcribed text: %s\n", text)
	return c.pass("service answered in %s", time.Since(start).Round(time.Millisecond))
}

func (c *checker) checkClipboard() bool {
	c.header("Clipboard")
	if !c.env.ClipboardAvailable() {
		c.warn("%v", clipboard.ErrUnsupported)
		return true
	}
	return c.pass("clipboard available")
}
