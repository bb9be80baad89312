package transcriber

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"whisgo/recorder"
	"whisgo/store"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func pcmAudio(samples int) *recorder.Audio {
	data := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		s := int16(math.Sin(float64(i)/8) * 8000)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return &recorder.Audio{Data: data, MimeType: recorder.MimeType, SampleRate: 16000, Channels: 1}
}

type captured struct {
	auth, model, temperature, format, language string
	filename                                   string
	file                                       []byte
}

func newServer(t *testing.T, status int, body string, got *captured) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if got != nil {
			got.auth = r.Header.Get("Authorization")
			got.model = r.FormValue("model")
			got.temperature = r.FormValue("temperature")
			got.format = r.FormValue("response_format")
			got.language = r.FormValue("language")
			f, hdr, err := r.FormFile("file")
			if err != nil {
				t.Errorf("FormFile: %v", err)
			} else {
				got.filename = hdr.Filename
				got.file, _ = io.ReadAll(f)
				f.Close()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTranscribeSuccess(t *testing.T) {
	var got captured
	srv, calls := newServer(t, http.StatusOK, `{"text":"hello world"}`, &got)
	c := NewClient(srv.URL, "")

	text, err := c.Transcribe(context.Background(), pcmAudio(1600), "sk-test", "whisper-large-v3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}

	checks := []struct{ name, got, want string }{
		{"auth", got.auth, "Bearer sk-test"},
		{"model", got.model, "whisper-large-v3"},
		{"temperature", got.temperature, "0"},
		{"response_format", got.format, "json"},
		{"language", got.language, "en"},
		{"filename", got.filename, "audio.flac"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if len(got.file) < 4 || string(got.file[:4]) != "fLaC" {
		t.Error("uploaded file is not FLAC")
	}
}

func TestTranscribeDefaultModel(t *testing.T) {
	var got captured
	srv, _ := newServer(t, http.StatusOK, `{"text":"x"}`, &got)
	if _, err := NewClient(srv.URL, "").Transcribe(context.Background(), pcmAudio(160), "k", ""); err != nil {
		t.Fatal(err)
	}
	if got.model != DefaultModel {
		t.Errorf("model = %q, want %q", got.model, DefaultModel)
	}
}

func TestTranscribeMissingCredential(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"text":"x"}`, nil)
	_, err := NewClient(srv.URL, "").Transcribe(context.Background(), pcmAudio(160), "", "m")
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
	if err.Error() != "API key is not set" {
		t.Errorf("message = %q", err.Error())
	}
	if calls.Load() != 0 {
		t.Errorf("made %d requests, want none", calls.Load())
	}
}

func TestTranscribeRemoteError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server message", http.StatusUnauthorized, `{"error":{"message":"Invalid API Key"}}`, "Invalid API Key"},
		{"no message", http.StatusInternalServerError, `{"error":{}}`, "Failed to transcribe audio"},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, "Failed to transcribe audio"},
		{"empty body", http.StatusTooManyRequests, ``, "Failed to transcribe audio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.status, tt.body, nil)
			_, err := NewClient(srv.URL, "").Transcribe(context.Background(), pcmAudio(160), "k", "m")
			if !errors.Is(err, ErrRemote) {
				t.Fatalf("err = %v, want ErrRemote", err)
			}
			var re *RemoteError
			if !errors.As(err, &re) {
				t.Fatalf("err = %T, want *RemoteError", err)
			}
			if re.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", re.StatusCode, tt.status)
			}
			if re.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", re.Message, tt.wantMsg)
			}
		})
	}
}

func TestTranscribeResponseBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"text present", `{"text":"hi"}`, "hi", false},
		{"text absent", `{"x_groq":{"id":"req_1"}}`, "", false},
		{"text empty", `{"text":""}`, "", false},
		{"undecodable", `not json`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, http.StatusOK, tt.body, nil)
			got, err := NewClient(srv.URL, "").Transcribe(context.Background(), pcmAudio(160), "k", "m")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	var got captured
	srv, _ := newServer(t, http.StatusOK, `{"text":""}`, &got)
	audio := &recorder.Audio{MimeType: recorder.MimeType, SampleRate: 16000, Channels: 1}
	if _, err := NewClient(srv.URL, "").Transcribe(context.Background(), audio, "k", "m"); err != nil {
		t.Fatal(err)
	}
	if string(got.file[:4]) != "fLaC" {
		t.Error("empty recording should still upload a FLAC header")
	}
}

func TestTranscribePassthroughMime(t *testing.T) {
	var got captured
	srv, _ := newServer(t, http.StatusOK, `{"text":"ok"}`, &got)
	audio := &recorder.Audio{Data: []byte("RIFF....WAVE"), MimeType: "audio/wav"}
	if _, err := NewClient(srv.URL, "").Transcribe(context.Background(), audio, "k", "m"); err != nil {
		t.Fatal(err)
	}
	if string(got.file) != "RIFF....WAVE" {
		t.Errorf("file = %q, want passthrough", got.file)
	}
	if got.filename == "audio.flac" {
		t.Errorf("filename = %q, want a wav name", got.filename)
	}
}

func TestTranscribeCancelled(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"text":"x"}`, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL, "").Transcribe(ctx, pcmAudio(160), "k", "m")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSettings(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	kv := store.NewMemory()

	s := LoadSettings(kv)
	if s.APIKey != "" || s.Model != DefaultModel {
		t.Errorf("defaults = %+v", s)
	}

	if err := SaveAPIKey(kv, "  gsk_abcdef1234  "); err != nil {
		t.Fatal(err)
	}
	if err := SaveModel(kv, "distil-whisper-large-v3-en"); err != nil {
		t.Fatal(err)
	}
	s = LoadSettings(kv)
	if s.APIKey != "gsk_abcdef1234" {
		t.Errorf("APIKey = %q", s.APIKey)
	}
	if s.Model != "distil-whisper-large-v3-en" {
		t.Errorf("Model = %q", s.Model)
	}
	if s.MaskedKey() != "********1234" {
		t.Errorf("MaskedKey = %q", s.MaskedKey())
	}

	if err := SaveModel(kv, " "); err == nil {
		t.Error("expected error for empty model")
	}
	if err := SaveAPIKey(kv, ""); err != nil {
		t.Fatal(err)
	}
	if s := LoadSettings(kv); s.APIKey != "" {
		t.Errorf("APIKey after clear = %q", s.APIKey)
	}
}

func TestSettingsEnvFallback(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "from-env")
	kv := store.NewMemory()
	if s := LoadSettings(kv); s.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", s.APIKey)
	}
	if err := SaveAPIKey(kv, "stored"); err != nil {
		t.Fatal(err)
	}
	if s := LoadSettings(kv); s.APIKey != "stored" {
		t.Errorf("APIKey = %q, stored key should win", s.APIKey)
	}
}

func TestFake(t *testing.T) {
	f := NewFake("hi", nil)
	if _, err := f.Transcribe(context.Background(), pcmAudio(1), "", "m"); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("err = %v", err)
	}
	got, err := f.Transcribe(context.Background(), pcmAudio(1), "k", "m")
	if err != nil || got != "hi" {
		t.Errorf("got %q, %v", got, err)
	}
	if len(f.Calls()) != 1 {
		t.Errorf("calls = %d, want 1", len(f.Calls()))
	}
}
