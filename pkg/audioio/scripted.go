package audioio

import (
	"context"
	"sync"

	"github.com/NextAI-Inc/nextevi-go/pkg/audio/pcm"
)

// Scripted is a Capability driven entirely by the caller: tests and the
// CLI debug path push capture frames and drain playback on demand, with
// no real devices and no background clock.
type Scripted struct {
	// StartErr, when set, is returned by Start. Use ErrPermissionDenied
	// to simulate a refused microphone prompt.
	StartErr error

	mu       sync.Mutex
	started  bool
	stops    int
	capture  pcm.Writer
	playback Source
}

// Start implements Capability.
func (s *Scripted) Start(ctx context.Context, capture pcm.Writer, playback Source) error {
	if s.StartErr != nil {
		return s.StartErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.capture = capture
	s.playback = playback
	return nil
}

// Stop implements Capability.
func (s *Scripted) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.stops++
	s.capture = nil
	s.playback = nil
	return nil
}

// Started reports whether the capability is currently started.
func (s *Scripted) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stops returns how many times Stop has been called.
func (s *Scripted) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// CaptureFrame pushes one PCM16 block through the capture path, as a real
// microphone callback would. It is a no-op when not started.
func (s *Scripted) CaptureFrame(pcmData []byte) error {
	s.mu.Lock()
	w := s.capture
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Write(pcmData)
}

// DrainPlayback pulls up to n bytes from the playback source, simulating
// one tick of the playback clock. It returns the samples read.
func (s *Scripted) DrainPlayback(n int) []byte {
	s.mu.Lock()
	src := s.playback
	s.mu.Unlock()
	if src == nil {
		return nil
	}
	p := make([]byte, n)
	rn, err := src.Read(p)
	if err != nil || rn == 0 {
		return nil
	}
	return p[:rn]
}

var _ Capability = (*Scripted)(nil)
