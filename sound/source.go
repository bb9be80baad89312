package sound

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

// Clip is decoded, interleaved PCM16 ready for a Player.
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

const toneRate = 44100

const (
	// start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// stop: medium pitch, slightly longer
	stopFreq   = 900
	stopVolume = 0.5
	stopDecay  = 40
)

// Resolve loads the clip an Effect URL points at.
func Resolve(rawURL string) (*Clip, error) {
	switch rawURL {
	case BuiltinStart:
		return &Clip{Samples: tick(toneRate, startFreq, 0.2, startVolume, startDecay), SampleRate: toneRate, Channels: 1}, nil
	case BuiltinStop:
		return &Clip{Samples: tick(toneRate, stopFreq, 0.2, stopVolume, stopDecay), SampleRate: toneRate, Channels: 1}, nil
	}
	path, ok := filePath(rawURL)
	if !ok {
		return nil, fmt.Errorf("unsupported sound url %q", rawURL)
	}
	return DecodeWAVFile(path)
}

func filePath(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, "file://") {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

// tick is a decaying sine burst.
func tick(sampleRate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

// DecodeWAVFile reads a PCM WAV file of any common bit depth into a Clip.
func DecodeWAVFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", filepath.Base(path))
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%s: missing format", filepath.Base(path))
	}
	if buf.Format.NumChannels > 2 {
		return nil, fmt.Errorf("%s: unsupported channel count %d", filepath.Base(path), buf.Format.NumChannels)
	}
	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("%s: no audio data", filepath.Base(path))
	}

	depth := int(d.BitDepth)
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = toInt16(v, depth)
	}
	return &Clip{Samples: samples, SampleRate: buf.Format.SampleRate, Channels: buf.Format.NumChannels}, nil
}

func toInt16(v, depth int) int16 {
	switch {
	case depth == 8:
		// 8-bit WAV is unsigned
		return int16((v - 128) << 8)
	case depth > 16:
		return int16(v >> (depth - 16))
	}
	return int16(v)
}

// Stereo duplicates a mono clip into two interleaved channels.
func (c *Clip) Stereo() []int16 {
	if c.Channels == 2 {
		return c.Samples
	}
	out := make([]int16, len(c.Samples)*2)
	for i, s := range c.Samples {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}
