// Package audioio abstracts microphone capture and speaker playback.
//
// The core SDK never touches audio hardware directly: it is handed a
// Capability at construction time and only starts/stops it and exchanges
// PCM16 sample blocks with it. Device acquisition, sample-rate conversion
// and the real-time playback clock all live behind this interface, so
// server-side or test code can substitute Noop or Scripted implementations.
package audioio

import (
	"context"
	"errors"

	"github.com/NextAI-Inc/nextevi-go/pkg/audio/pcm"
)

// ErrPermissionDenied reports that the user or OS refused microphone
// access. It is distinguished from generic device failures because it
// usually needs a different user-facing remedy.
var ErrPermissionDenied = errors.New("audioio: microphone access denied")

// Source is the playback side handed to a Capability. The real-time
// playback clock pulls samples from it; Read never blocks and returns
// n == 0 when no audio is queued (the device should play silence).
type Source interface {
	Read(p []byte) (int, error)
}

// Capability is the external audio collaborator.
//
// Start acquires the devices and begins capture and playback. Captured
// PCM16 blocks are written to capture from the device's own execution
// context; the capture writer must not be called after Stop returns.
// Playback samples are pulled from playback by the device clock.
//
// Start may suspend on permission prompts; it returns ErrPermissionDenied
// (possibly wrapped) when microphone access is refused.
type Capability interface {
	Start(ctx context.Context, capture pcm.Writer, playback Source) error
	Stop(ctx context.Context) error
}
