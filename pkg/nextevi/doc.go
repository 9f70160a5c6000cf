// Package nextevi provides a client for NextEVI real-time voice sessions.
//
// A session is a full-duplex voice conversation over one persistent
// WebSocket: microphone audio streams up as raw PCM16 frames while
// transcription, LLM, TTS, emotion, turn and idle events stream down and
// fold into a single conversation state.
//
// # Connecting
//
//	client := nextevi.NewClient(
//	    nextevi.WithAudioIO(device),
//	)
//	err := client.Connect(ctx, &nextevi.ConnectConfig{
//	    ConfigID:  "c1",
//	    APIKey:    "oak_...",
//	    ProjectID: "p1",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Disconnect(ctx)
//
// # Observing State
//
// The conversation state is exposed as snapshots plus subscriptions; any
// UI binding layer is a thin adapter over these:
//
//	unsub := client.Subscribe(func(s nextevi.VoiceState) {
//	    for _, m := range s.Messages {
//	        fmt.Printf("%s: %s\n", m.Role, m.Text)
//	    }
//	})
//	defer unsub()
//
// Pull-style consumption is available through Updates:
//
//	for state := range client.Updates(ctx) {
//	    render(state)
//	}
//
// # Audio
//
// Audio devices live behind the audioio.Capability interface. The
// default is audioio.Noop, which captures nothing and discards playback;
// pass a real device implementation with WithAudioIO. The core only
// starts and stops the capability and exchanges PCM16 sample blocks with
// it, so server-side and test code run without any audio hardware.
//
// # Errors
//
// Fatal failures surface as *Error values with stable codes (see the
// ErrCode constants) and are additionally appended to the conversation
// log as error-role messages. Transient transport failures are retried
// with exponential backoff and only surface once retries are exhausted.
package nextevi
