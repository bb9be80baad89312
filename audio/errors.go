package audio

import "errors"

var (
	ErrPermissionDenied = errors.New("audio device access denied")
	ErrUnknownDevice    = errors.New("unknown audio device")
	ErrNoDevices        = errors.New("no capture devices found")
	ErrCancelled        = errors.New("device selection cancelled")
)
