package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

var ErrClosed = errors.New("flac encoder closed")

// FlacEncoder compresses little-endian PCM16 mono into an in-memory FLAC
// stream. Writes may split samples and blocks anywhere; a frame is emitted
// for every BlockSize samples and the remainder on Close.
type FlacEncoder struct {
	buf     bytes.Buffer
	enc     *flac.Encoder
	pending []int32
	carry   []byte // odd byte left over from the previous Write
	samples uint64
	elapsed time.Duration
	closed  bool
}

func NewFlac() (*FlacEncoder, error) {
	e := &FlacEncoder{pending: make([]int32, 0, BlockSize)}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(&e.buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	e.enc = enc
	return e, nil
}

func (e *FlacEncoder) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	start := time.Now()
	defer func() { e.elapsed += time.Since(start) }()

	data := p
	if len(e.carry) > 0 {
		data = append(e.carry, p...)
		e.carry = nil
	}
	if len(data)%2 == 1 {
		e.carry = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	}
	for i := 0; i+1 < len(data); i += 2 {
		e.pending = append(e.pending, int32(int16(binary.LittleEndian.Uint16(data[i:]))))
		if len(e.pending) == BlockSize {
			if err := e.flush(); err != nil {
				return 0, err
			}
		}
	}
	return len(p), nil
}

func (e *FlacEncoder) flush() error {
	n := len(e.pending)
	samples := make([]int32, n)
	copy(samples, e.pending)
	e.pending = e.pending[:0]

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  n,
		}},
	}
	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame at sample %d: %w", e.samples, err)
	}
	e.samples += uint64(n)
	return nil
}

// Close emits the final partial block and finishes the stream. A dangling
// odd byte is dropped.
func (e *FlacEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if len(e.pending) > 0 {
		start := time.Now()
		err := e.flush()
		e.elapsed += time.Since(start)
		if err != nil {
			return err
		}
	}
	return e.enc.Close()
}

func (e *FlacEncoder) Bytes() []byte { return e.buf.Bytes() }

// Samples is the number of samples written as frames so far.
func (e *FlacEncoder) Samples() uint64 { return e.samples }

func (e *FlacEncoder) EncodeTime() time.Duration { return e.elapsed }
