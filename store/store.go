// Package store persists small string values under string keys.
//
// It plays the role a browser's localStorage plays for a web client: the
// preferences, credential and history of a single local user. Values are
// opaque strings; JSON values go through LoadJSON/SaveJSON.
package store

import "errors"

// Keys shared by the packages that persist through a KV.
const (
	KeySelectedDevice  = "selected_audio_device"
	KeyAPIKey          = "groq_api_key"
	KeyModel           = "groq_model"
	KeyPlaybackEnabled = "audioPlaybackEnabled"
	KeyStartSound      = "startRecordingSound"
	KeyStopSound       = "stopRecordingSound"
	KeyHistory         = "transcription_history"
)

// ErrCorrupt marks a persisted value that could not be decoded or validated.
var ErrCorrupt = errors.New("corrupt persisted value")

type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}
