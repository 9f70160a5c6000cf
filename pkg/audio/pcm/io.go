package pcm

// Writer consumes blocks of raw PCM16 audio.
type Writer interface {
	Write(pcm []byte) error
}

var _ Writer = WriteFunc(nil)

// WriteFunc is a function that implements the Writer interface.
type WriteFunc func(pcm []byte) error

// Write implements the Writer interface.
func (f WriteFunc) Write(pcm []byte) error {
	return f(pcm)
}

// Discard is a Writer that drops all written audio.
var Discard Writer = discard{}

type discard struct{}

func (discard) Write([]byte) error {
	return nil
}
