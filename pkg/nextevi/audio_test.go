package nextevi

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/NextAI-Inc/nextevi-go/pkg/audio/pcm"
	"github.com/NextAI-Inc/nextevi-go/pkg/audioio"
)

type playingRecorder struct {
	mu      sync.Mutex
	signals []bool
}

func (r *playingRecorder) record(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, on)
}

func (r *playingRecorder) all() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.signals...)
}

func newTestBridge(t *testing.T, io audioio.Capability, send func([]byte)) (*audioBridge, *playingRecorder) {
	t.Helper()
	if send == nil {
		send = func([]byte) {}
	}
	rec := &playingRecorder{}
	return newAudioBridge(io, pcm.L16Mono16K, send, rec.record, slog.Default()), rec
}

func TestBridgeCaptureForwarding(t *testing.T) {
	var sent [][]byte
	io := &audioio.Scripted{}
	b, _ := newTestBridge(t, io, func(frame []byte) {
		sent = append(sent, frame)
	})

	if err := b.start(context.Background()); err != nil {
		t.Fatal(err)
	}
	io.CaptureFrame([]byte{1, 2})
	io.CaptureFrame([]byte{3, 4})

	if len(sent) != 2 || !bytes.Equal(sent[1], []byte{3, 4}) {
		t.Errorf("sent=%v", sent)
	}
}

func TestBridgeStartErrors(t *testing.T) {
	t.Run("permission denied", func(t *testing.T) {
		io := &audioio.Scripted{StartErr: audioio.ErrPermissionDenied}
		b, _ := newTestBridge(t, io, nil)
		err := b.start(context.Background())
		if ErrorCode(err) != ErrCodeMicAccessDenied {
			t.Errorf("err=%v", err)
		}
		if !errors.Is(err, audioio.ErrPermissionDenied) {
			t.Error("cause must stay in the chain")
		}
	})

	t.Run("generic failure", func(t *testing.T) {
		io := &audioio.Scripted{StartErr: errors.New("no such device")}
		b, _ := newTestBridge(t, io, nil)
		if err := b.start(context.Background()); ErrorCode(err) != ErrCodeAudioInitFailed {
			t.Errorf("err=%v", err)
		}
	})
}

func TestBridgePlaybackSignals(t *testing.T) {
	io := &audioio.Scripted{}
	b, rec := newTestBridge(t, io, nil)
	if err := b.start(context.Background()); err != nil {
		t.Fatal(err)
	}

	b.enqueuePlayback([]byte{1, 2, 3, 4})
	b.enqueuePlayback([]byte{5, 6}) // no duplicate started signal

	got := io.DrainPlayback(8)
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("drained=%v", got)
	}

	// Queue is now empty: the next clock tick signals starvation.
	if got := io.DrainPlayback(8); got != nil {
		t.Errorf("drained=%v", got)
	}

	if signals := rec.all(); len(signals) != 2 || !signals[0] || signals[1] {
		t.Errorf("signals=%v", signals)
	}
}

func TestBridgeClearPlayback(t *testing.T) {
	io := &audioio.Scripted{}
	b, rec := newTestBridge(t, io, nil)
	if err := b.start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Safe when nothing is queued.
	b.clearPlayback()
	if len(rec.all()) != 0 {
		t.Errorf("signals=%v", rec.all())
	}

	b.enqueuePlayback([]byte{1, 2, 3, 4})
	b.clearPlayback()

	if got := io.DrainPlayback(8); got != nil {
		t.Errorf("queue must be empty after clear, got %v", got)
	}
	if signals := rec.all(); len(signals) != 2 || signals[1] {
		t.Errorf("signals=%v", signals)
	}
}

func TestBridgeStopKeepsQueue(t *testing.T) {
	io := &audioio.Scripted{}
	b, _ := newTestBridge(t, io, nil)
	if err := b.start(context.Background()); err != nil {
		t.Fatal(err)
	}

	b.enqueuePlayback([]byte{9, 9})
	if err := b.stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if io.Started() {
		t.Error("stop must release the device")
	}

	// Queued audio survives stop; only clearPlayback drops it.
	p := make([]byte, 4)
	n, _ := b.readPlayback(p)
	if !bytes.Equal(p[:n], []byte{9, 9}) {
		t.Errorf("got=%v", p[:n])
	}

	// stop is idempotent.
	if err := b.stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if io.Stops() != 1 {
		t.Errorf("stops=%d", io.Stops())
	}
}
