package pcm

import (
	"testing"
	"time"
)

func TestFormatMath(t *testing.T) {
	f := L16Mono16K

	if got := f.BytesPerSample(); got != 2 {
		t.Errorf("bytes per sample=%d", got)
	}
	if got := f.BytesRate(); got != 32000 {
		t.Errorf("bytes rate=%d", got)
	}
	if got := f.BytesInDuration(20 * time.Millisecond); got != 640 {
		t.Errorf("bytes in 20ms=%d", got)
	}
	if got := f.Duration(32000); got != time.Second {
		t.Errorf("duration=%v", got)
	}
	if got := f.Samples(4096); got != 2048 {
		t.Errorf("samples=%d", got)
	}
}

func TestFormatSilence(t *testing.T) {
	b := L16Mono24K.Silence(10 * time.Millisecond)
	if len(b) != 480 {
		t.Errorf("silence len=%d", len(b))
	}
	for _, v := range b {
		if v != 0 {
			t.Fatal("silence is not zeroed")
		}
	}
}

func TestFormatString(t *testing.T) {
	want := "audio/L16; rate=48000; channels=1"
	if got := L16Mono48K.String(); got != want {
		t.Errorf("got=%q want=%q", got, want)
	}
}

func TestWriteFunc(t *testing.T) {
	var got []byte
	w := WriteFunc(func(pcm []byte) error {
		got = append(got, pcm...)
		return nil
	})
	if err := w.Write([]byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got=%v", got)
	}
	if err := Discard.Write([]byte{3}); err != nil {
		t.Errorf("discard: %v", err)
	}
}
