package nextevi

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/NextAI-Inc/nextevi-go/pkg/audio/pcm"
	"github.com/NextAI-Inc/nextevi-go/pkg/audioio"
	"github.com/NextAI-Inc/nextevi-go/pkg/buffer"
)

// playbackWindow bounds the playback FIFO: late audio past this window is
// overwritten by fresher samples rather than growing without bound.
const playbackWindow = 10 * time.Second

// audioBridge pumps captured PCM16 frames into the transport and inbound
// synthesized audio into a FIFO drained by the AudioIO playback clock.
//
// The capture callback and the playback clock run on the device's
// real-time context; everything crossing that boundary goes through the
// send func and the ring buffer, never shared mutable state.
type audioBridge struct {
	io     audioio.Capability
	format pcm.Format
	send   func(pcm []byte)
	log    *slog.Logger

	// onPlaying reports playback queue transitions (non-empty, empty)
	// which drive the TTS-playing flag.
	onPlaying func(bool)

	mu      sync.Mutex
	queue   *buffer.RingBuffer[byte]
	started bool
	playing bool
}

func newAudioBridge(io audioio.Capability, format pcm.Format, send func([]byte), onPlaying func(bool), log *slog.Logger) *audioBridge {
	return &audioBridge{
		io:        io,
		format:    format,
		send:      send,
		onPlaying: onPlaying,
		log:       log,
		queue:     buffer.Ring[byte](format.BytesInDuration(playbackWindow)),
	}
}

// start acquires the audio devices and wires both directions. A refused
// microphone prompt surfaces as ErrCodeMicAccessDenied, anything else as
// ErrCodeAudioInitFailed.
func (b *audioBridge) start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	capture := pcm.WriteFunc(func(frame []byte) error {
		b.send(frame)
		return nil
	})

	if err := b.io.Start(ctx, capture, playbackSource{b}); err != nil {
		if errors.Is(err, audioio.ErrPermissionDenied) {
			return wrapError(ErrCodeMicAccessDenied, "microphone access denied", err)
		}
		return wrapError(ErrCodeAudioInitFailed, "audio device initialization failed", err)
	}

	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
	return nil
}

// stop halts capture. Audio already queued for playback stays queued;
// callers that also want silence call clearPlayback.
func (b *audioBridge) stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = false
	b.mu.Unlock()
	return b.io.Stop(ctx)
}

// enqueuePlayback queues one block of synthesized audio.
func (b *audioBridge) enqueuePlayback(pcmData []byte) {
	if len(pcmData) == 0 {
		return
	}
	b.mu.Lock()
	b.queue.Write(pcmData)
	wasPlaying := b.playing
	b.playing = true
	b.mu.Unlock()
	if !wasPlaying && b.onPlaying != nil {
		b.onPlaying(true)
	}
}

// clearPlayback drops all queued and in-flight synthesized audio. Safe to
// call when nothing is queued; used to implement interruption.
func (b *audioBridge) clearPlayback() {
	b.mu.Lock()
	b.queue.DiscardAll()
	wasPlaying := b.playing
	b.playing = false
	b.mu.Unlock()
	if wasPlaying && b.onPlaying != nil {
		b.onPlaying(false)
	}
}

// readPlayback is the playback clock's pull: non-blocking, n == 0 means
// play silence. The empty transition emits the playback-stopped signal.
func (b *audioBridge) readPlayback(p []byte) (int, error) {
	b.mu.Lock()
	n, err := b.queue.TryRead(p)
	starved := n == 0 && err == nil && b.playing
	if starved {
		b.playing = false
	}
	b.mu.Unlock()
	if starved && b.onPlaying != nil {
		b.onPlaying(false)
	}
	return n, err
}

// playbackSource adapts the bridge to the audioio.Source pull interface.
type playbackSource struct {
	b *audioBridge
}

func (s playbackSource) Read(p []byte) (int, error) {
	return s.b.readPlayback(p)
}
