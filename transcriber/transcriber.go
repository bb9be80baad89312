// Package transcriber uploads recordings to an OpenAI-compatible
// speech-to-text endpoint and returns the recognised text.
package transcriber

import (
	"context"
	"net/http"
	"time"

	"whisgo/recorder"
)

const (
	DefaultEndpoint = "https://api.groq.com/openai/v1/audio/transcriptions"
	DefaultModel    = "whisper-large-v3-turbo"
	DefaultLanguage = "en"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Transcriber turns one recording into text. Implementations make a single
// attempt and never retry.
type Transcriber interface {
	Transcribe(ctx context.Context, audio *recorder.Audio, credential, model string) (string, error)
}
