package audioio

import (
	"context"

	"github.com/NextAI-Inc/nextevi-go/pkg/audio/pcm"
)

// Noop is a Capability that captures nothing and discards playback.
// It is the composition-time substitute for environments without audio
// hardware (servers, CI).
type Noop struct{}

// Start implements Capability. It succeeds without acquiring anything.
func (Noop) Start(ctx context.Context, capture pcm.Writer, playback Source) error {
	return nil
}

// Stop implements Capability.
func (Noop) Stop(ctx context.Context) error {
	return nil
}

var _ Capability = Noop{}
