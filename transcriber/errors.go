package transcriber

import (
	"errors"
	"fmt"
)

const fallbackMessage = "Failed to transcribe audio"

var (
	ErrMissingCredential = errors.New("API key is not set")
	ErrRemote            = errors.New("transcription service error")
)

// RemoteError is a non-2xx answer from the service.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
