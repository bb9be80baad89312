//go:build !linux

package sound

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

type malgoPlayer struct {
	ctx *malgo.AllocatedContext

	mu      sync.Mutex
	samples atomic.Pointer[[]byte]
	pos     atomic.Uint32
}

func NewPlayer() (Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoPlayer{ctx: ctx}, nil
}

func (p *malgoPlayer) dataCallback(pOutput, _ []byte, frameCount uint32) {
	samples := p.samples.Load()
	want := frameCount * 2
	var n uint32
	if samples != nil {
		pos := p.pos.Load()
		if total := uint32(len(*samples)); pos < total {
			n = min(want, total-pos)
			copy(pOutput[:n], (*samples)[pos:pos+n])
			p.pos.Store(pos + n)
		}
	}
	for i := n; i < uint32(len(pOutput)); i++ {
		pOutput[i] = 0
	}
}

func (p *malgoPlayer) Play(clip *Clip) error {
	if len(clip.Samples) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	mono := clip.Samples
	if clip.Channels == 2 {
		mono = make([]int16, len(clip.Samples)/2)
		for i := range mono {
			mono[i] = int16((int32(clip.Samples[i*2]) + int32(clip.Samples[i*2+1])) / 2)
		}
	}
	buf := make([]byte, len(mono)*2)
	for i, s := range mono {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = uint32(clip.SampleRate)

	device, err := malgo.InitDevice(p.ctx.Context, config, malgo.DeviceCallbacks{Data: p.dataCallback})
	if err != nil {
		return err
	}
	defer device.Uninit()

	p.pos.Store(0)
	p.samples.Store(&buf)
	defer p.samples.Store(nil)

	if err := device.Start(); err != nil {
		return err
	}
	// let the tail drain through the device buffer
	length := time.Duration(len(mono)) * time.Second / time.Duration(clip.SampleRate)
	time.Sleep(length + 100*time.Millisecond)
	return device.Stop()
}
