package transcriber

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// maxResponseBytes bounds how much of a reply is read; transcripts of a
// voice memo are far smaller.
const maxResponseBytes = 4 << 20

// TracedClient is an HTTP client that records per-phase timings of each
// request.
type TracedClient struct {
	client *http.Client
}

func NewTracedClient() *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        2,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// phaseClock fills NetworkMetrics from httptrace callbacks.
type phaseClock struct {
	m *NetworkMetrics

	getConn, dns, connect, tls  time.Time
	gotConn, headers, requested time.Time
	firstByte                   time.Time
}

func (p *phaseClock) trace() *httptrace.ClientTrace {
	m := p.m
	return &httptrace.ClientTrace{
		GetConn: func(string) { p.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			p.gotConn = time.Now()
			m.ConnWait = p.gotConn.Sub(p.getConn)
			m.ConnReused = info.Reused
		},
		DNSStart:     func(httptrace.DNSStartInfo) { p.dns = time.Now() },
		DNSDone:      func(httptrace.DNSDoneInfo) { m.DNS = time.Since(p.dns) },
		ConnectStart: func(string, string) { p.connect = time.Now() },
		ConnectDone:  func(string, string, error) { m.TCP = time.Since(p.connect) },
		TLSHandshakeStart: func() {
			p.tls = time.Now()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			m.TLS = time.Since(p.tls)
			m.TLSProtocol = state.NegotiatedProtocol
		},
		WroteHeaders: func() {
			p.headers = time.Now()
			m.ReqHeaders = p.headers.Sub(p.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.requested = time.Now()
			m.ReqBody = p.requested.Sub(p.headers)
		},
		GotFirstResponseByte: func() {
			p.firstByte = time.Now()
			m.TTFB = p.firstByte.Sub(p.requested)
		},
	}
}

// Do sends req and reads the whole reply.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	clock := &phaseClock{m: &NetworkMetrics{}}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), clock.trace()))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response larger than %d bytes", maxResponseBytes)
	}
	if !clock.firstByte.IsZero() {
		clock.m.Download = time.Since(clock.firstByte)
	}
	clock.m.Total = time.Since(start)

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    clock.m,
	}, nil
}

// WarmConnection opens a pooled connection to url with a HEAD request and
// reports how long the TLS handshake took (0 for plain HTTP or on error).
func (c *TracedClient) WarmConnection(ctx context.Context, url string) time.Duration {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0
	}
	return resp.Metrics.TLS
}
