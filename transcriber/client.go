package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"whisgo/encoder"
	"whisgo/log"
	"whisgo/recorder"
)

// Client talks to the transcription endpoint over a connection-reusing,
// traced HTTP client.
type Client struct {
	http     *TracedClient
	endpoint string
	lang     string
}

func NewClient(endpoint, lang string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Client{
		http:     NewTracedClient(),
		endpoint: endpoint,
		lang:     lang,
	}
}

func (c *Client) Endpoint() string { return c.endpoint }

// Warm opens a connection ahead of the first upload so the TLS handshake
// is not paid while the user waits.
func (c *Client) Warm(ctx context.Context) {
	if d := c.http.WarmConnection(ctx, c.endpoint); d > 0 {
		log.Infof("connection warmed, tls=%dms", d.Milliseconds())
	}
}

type transcriptionResponse struct {
	Text *string `json:"text"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Transcribe(ctx context.Context, audio *recorder.Audio, credential, model string) (string, error) {
	if credential == "" {
		return "", ErrMissingCredential
	}
	if model == "" {
		model = DefaultModel
	}

	payload, filename, encodeTime, err := prepare(audio)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(payload); err != nil {
		return "", err
	}
	writer.WriteField("model", model)
	writer.WriteField("temperature", "0")
	writer.WriteField("response_format", "json")
	writer.WriteField("language", c.lang)
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	m := resp.Metrics
	log.TranscriptionMetrics(log.Metrics{
		AudioLengthS: audio.Duration().Seconds(),
		RawSizeKB:    float64(len(audio.Data)) / 1024,
		UploadKB:     float64(len(payload)) / 1024,
		EncodeTimeMs: float64(encodeTime.Microseconds()) / 1000,
		DNSTimeMs:    float64(m.DNS.Microseconds()) / 1000,
		TLSTimeMs:    float64(m.TLS.Microseconds()) / 1000,
		TTFBMs:       float64(m.TTFB.Microseconds()) / 1000,
		TotalTimeMs:  float64(m.Total.Microseconds()) / 1000,
	}, model, m.ConnReused, m.TLSProtocol)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fallbackMessage
		var e errorResponse
		if json.Unmarshal(resp.Body, &e) == nil && e.Error != nil && e.Error.Message != "" {
			msg = e.Error.Message
		}
		log.Warnf("transcription failed: status=%d ratelimit=%s/%s",
			resp.StatusCode,
			firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests"),
			firstNonEmpty(resp.Header, "x-ratelimit-limit-requests"))
		return "", &RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}

	var out transcriptionResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("transcription response parse error: %w", err)
	}
	if out.Text == nil {
		return "", nil
	}
	return *out.Text, nil
}

// prepare returns the upload body and its file name. Raw PCM is compressed
// to FLAC; anything else is sent as recorded.
func prepare(audio *recorder.Audio) ([]byte, string, time.Duration, error) {
	if audio == nil {
		return nil, "", 0, fmt.Errorf("no audio")
	}
	if audio.MimeType == recorder.MimeType {
		start := time.Now()
		data, err := encoder.EncodePCM(audio.Data)
		if err != nil {
			return nil, "", 0, fmt.Errorf("encoding audio: %w", err)
		}
		return data, "audio." + encoder.Format, time.Since(start), nil
	}
	ext := ".bin"
	if exts, _ := mime.ExtensionsByType(audio.MimeType); len(exts) > 0 {
		ext = exts[0]
	}
	return audio.Data, "audio" + ext, 0, nil
}
