package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisgo/audio"
)

func TestMountImmediatelyWhenReady(t *testing.T) {
	actx := audio.NewFakeContext()
	b := startBackend(func() (audio.Context, error) { return actx, nil }, false)
	require.True(t, b.Ready())

	var got audio.Context
	err := mountWhenReady(context.Background(), b, func(c audio.Context) error {
		got = c
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, actx, got)
}

func TestMountWaitsForBackend(t *testing.T) {
	release := make(chan struct{})
	actx := audio.NewFakeContext()
	b := startBackend(func() (audio.Context, error) {
		<-release
		return actx, nil
	}, true)
	assert.False(t, b.Ready())

	mounted := make(chan struct{})
	go func() {
		mountWhenReady(context.Background(), b, func(audio.Context) error {
			close(mounted)
			return nil
		})
	}()

	select {
	case <-mounted:
		t.Fatal("mounted before the backend was ready")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	select {
	case <-mounted:
	case <-time.After(time.Second):
		t.Fatal("never mounted")
	}
	assert.True(t, b.Ready())
}

func TestMountNeverRunsAfterCancel(t *testing.T) {
	b := startBackend(func() (audio.Context, error) {
		select {}
	}, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := mountWhenReady(ctx, b, func(audio.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMountBackendError(t *testing.T) {
	boom := errors.New("no pulse server")
	b := startBackend(func() (audio.Context, error) { return nil, boom }, false)

	err := mountWhenReady(context.Background(), b, func(audio.Context) error {
		t.Fatal("mount called")
		return nil
	})
	assert.ErrorIs(t, err, boom)
	b.Close()
}

type closeCountingContext struct {
	*audio.FakeContext
	closed atomic.Int32
}

func (c *closeCountingContext) Close() { c.closed.Add(1) }

func TestCloseBeforeConnectFinishes(t *testing.T) {
	release := make(chan struct{})
	actx := &closeCountingContext{FakeContext: audio.NewFakeContext()}
	b := startBackend(func() (audio.Context, error) {
		<-release
		return actx, nil
	}, true)

	b.Close()
	assert.Zero(t, actx.closed.Load())

	close(release)
	require.Eventually(t, func() bool { return actx.closed.Load() == 1 }, time.Second, 5*time.Millisecond)

	b.Close()
	assert.Equal(t, int32(1), actx.closed.Load())
}

func TestCloseWhenReady(t *testing.T) {
	actx := &closeCountingContext{FakeContext: audio.NewFakeContext()}
	b := startBackend(func() (audio.Context, error) { return actx, nil }, false)
	b.Close()
	assert.Equal(t, int32(1), actx.closed.Load())
}
