//go:build linux

package sound

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulsePlayer struct {
	mu sync.Mutex
}

func NewPlayer() (Player, error) {
	return &pulsePlayer{}, nil
}

func (p *pulsePlayer) Play(clip *Clip) error {
	if len(clip.Samples) == 0 {
		return nil
	}
	// one cue at a time; overlapping cues would just be noise
	p.mu.Lock()
	defer p.mu.Unlock()

	c, err := pulse.NewClient(pulse.ClientApplicationName("whisgo"))
	if err != nil {
		return err
	}
	defer c.Close()

	samples := clip.Stereo()
	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(clip.SampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return err
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
	return stream.Error()
}
