// Package encoder compresses captured audio for upload.
package encoder

import (
	"fmt"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096

	// Format names the container produced by EncodePCM.
	Format   = "flac"
	MimeType = "audio/flac"
)

// EncodePCM compresses a whole little-endian PCM16 mono buffer. A trailing
// odd byte is ignored.
func EncodePCM(pcm []byte) ([]byte, error) {
	enc, err := NewFlac()
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(pcm); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return enc.Bytes(), nil
}
