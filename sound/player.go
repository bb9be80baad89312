package sound

// Player renders a clip on an output device and returns once it has been
// handed to the device.
type Player interface {
	Play(clip *Clip) error
}
