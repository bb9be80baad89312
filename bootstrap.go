package main

import (
	"context"
	"fmt"
	"sync"

	"whisgo/audio"
)

// backend is the audio system, which may still be connecting when the
// application starts.
type backend struct {
	ready     chan struct{}
	ctx       audio.Context
	err       error
	closeOnce sync.Once
}

// startBackend opens the audio system. With async the caller gets the
// backend immediately and must wait on it before use.
func startBackend(open func() (audio.Context, error), async bool) *backend {
	b := &backend{ready: make(chan struct{})}
	connect := func() {
		defer close(b.ready)
		b.ctx, b.err = open()
	}
	if async {
		go connect()
	} else {
		connect()
	}
	return b
}

func (b *backend) Ready() bool {
	select {
	case <-b.ready:
		return true
	default:
		return false
	}
}

func (b *backend) Wait(ctx context.Context) (audio.Context, error) {
	select {
	case <-b.ready:
		return b.ctx, b.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the audio system. A connect still in flight is closed
// once it finishes.
func (b *backend) Close() {
	closeCtx := func() {
		b.closeOnce.Do(func() {
			if b.ctx != nil {
				b.ctx.Close()
			}
		})
	}
	if b.Ready() {
		closeCtx()
		return
	}
	go func() {
		<-b.ready
		closeCtx()
	}()
}

// mountWhenReady runs mount as soon as the backend is usable: at once when
// it already is, otherwise after it signals ready. A cancelled ctx means
// mount never runs.
func mountWhenReady(ctx context.Context, b *backend, mount func(audio.Context) error) error {
	actx, err := b.Wait(ctx)
	if err != nil {
		return fmt.Errorf("audio backend: %w", err)
	}
	return mount(actx)
}
