package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NextAI-Inc/nextevi-go/pkg/audio/pcm"
	"github.com/NextAI-Inc/nextevi-go/pkg/audioio"
	"github.com/NextAI-Inc/nextevi-go/pkg/cli"
	"github.com/NextAI-Inc/nextevi-go/pkg/nextevi"
)

const captureTick = 100 * time.Millisecond

var (
	connectAudioFile  string
	connectSaveAudio  bool
	connectDuration   time.Duration
	connectSampleRate int
	connectIdleWarn   time.Duration
	connectIdleHangup time.Duration
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open a live voice session",
	Long: `Open a full-duplex voice session and print the transcript.

Audio is fed from a raw PCM16 little-endian file given with --audio,
streamed at real-time rate. Without --audio the session only listens:
the server can still speak and the transcript is printed as it
arrives. Press Ctrl-C to hang up.

Examples:
  nextevi -c myctx connect --audio question.pcm
  nextevi -c myctx connect --save-audio --duration 2m`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectAudioFile, "audio", "", "raw PCM16 file to stream as microphone input")
	connectCmd.Flags().BoolVar(&connectSaveAudio, "save-audio", false, "save synthesized speech to ~/.nextevi/recordings")
	connectCmd.Flags().DurationVar(&connectDuration, "duration", 0, "maximum session length (0 for unlimited)")
	connectCmd.Flags().IntVar(&connectSampleRate, "sample-rate", 0, "capture sample rate in Hz (overrides context)")
	connectCmd.Flags().DurationVar(&connectIdleWarn, "idle-warning", 0, "idle warning timeout")
	connectCmd.Flags().DurationVar(&connectIdleHangup, "idle-hangup", 0, "idle hangup timeout")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cliCtx, err := getContext()
	if err != nil {
		return err
	}

	var audioData []byte
	if connectAudioFile != "" {
		audioData, err = os.ReadFile(connectAudioFile)
		if err != nil {
			return fmt.Errorf("failed to read audio file: %w", err)
		}
	}

	sampleRate := connectSampleRate
	if sampleRate == 0 {
		sampleRate = cliCtx.SampleRate
	}

	cfg := &nextevi.ConnectConfig{
		ConfigID:  cliCtx.ConfigID,
		APIKey:    cliCtx.APIKey,
		ProjectID: cliCtx.ProjectID,
		Token:     cliCtx.Token,
		Settings:  nextevi.SessionSettings{SampleRate: sampleRate},
		Policy: nextevi.SessionPolicy{
			IdleWarningTimeout: connectIdleWarn,
			IdleHangupTimeout:  connectIdleHangup,
			IdleEnabled:        connectIdleWarn > 0 || connectIdleHangup > 0,
		},
	}

	io := &audioio.Scripted{}
	opts := []nextevi.Option{
		nextevi.WithLogger(newLogger()),
		nextevi.WithAudioIO(io),
	}
	if cliCtx.BaseURL != "" {
		opts = append(opts, nextevi.WithBaseURL(cliCtx.BaseURL))
	}
	client := nextevi.NewClient(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if connectDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectDuration)
		defer cancel()
	}

	if err := client.Connect(ctx, cfg); err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	format := pcm.Format{Rate: 16000, Channels: 1}
	if sampleRate > 0 {
		format.Rate = sampleRate
	}

	var recorded []byte
	go pumpAudio(ctx, io, format, audioData, connectSaveAudio, &recorded)

	renderTranscript(ctx, client)

	if connectSaveAudio && len(recorded) > 0 {
		if err := saveRecording(client.SessionID(), recorded); err != nil {
			return err
		}
	}
	return nil
}

// pumpAudio drives the scripted audio device at real-time rate: one
// capture chunk up and one playback drain per tick.
func pumpAudio(ctx context.Context, io *audioio.Scripted, format pcm.Format, capture []byte, save bool, recorded *[]byte) {
	chunk := format.BytesInDuration(captureTick)
	ticker := time.NewTicker(captureTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if len(capture) > 0 {
			n := min(chunk, len(capture))
			io.CaptureFrame(capture[:n])
			capture = capture[n:]
		}
		if out := io.DrainPlayback(chunk); save && len(out) > 0 {
			*recorded = append(*recorded, out...)
		}
	}
}

// renderTranscript consumes state updates and prints messages as they
// finalize. The head of the message log may still be streaming; it is
// held back until it settles so each line is printed exactly once.
func renderTranscript(ctx context.Context, client *nextevi.Client) {
	styles := cli.NewTranscriptStyles(cli.DefaultTheme)
	printed := 0
	lastStatus := ""

	render := func(state nextevi.VoiceState) {
		for printed < len(state.Messages) {
			m := state.Messages[printed]
			if m.Streaming {
				break
			}
			fmt.Println(styles.Line(string(m.Role), m.Text))
			if verbose && len(m.Emotions) > 0 {
				top := m.Emotions[0]
				fmt.Println(styles.Meta.Render(fmt.Sprintf("          emotion: %s (%.0f%%)", top.Emotion, top.Score*100)))
			}
			if verbose && m.Turn != nil && m.Turn.ProcessingTime > 0 {
				d := time.Duration(m.Turn.ProcessingTime * float64(time.Millisecond))
				fmt.Println(styles.Meta.Render("          turn: " + cli.FormatDuration(d)))
			}
			printed++
		}

		status := styles.Status(state.Connection.String(), state.Recording, state.TTSPlaying)
		if verbose && status != lastStatus {
			fmt.Println(status)
			lastStatus = status
		}
	}

	render(client.State())
	for state := range client.Updates(ctx) {
		render(state)
	}
}

func saveRecording(sessionID string, data []byte) error {
	paths, err := cli.NewPaths()
	if err != nil {
		return err
	}
	if err := paths.EnsureRecordingDir(); err != nil {
		return err
	}
	name := fmt.Sprintf("session-%s.pcm", sessionID)
	if sessionID == "" {
		name = fmt.Sprintf("session-%d.pcm", time.Now().Unix())
	}
	path := paths.RecordingPath(name)
	if err := cli.OutputBytes(data, path); err != nil {
		return err
	}
	cli.PrintSuccess("Saved %s of audio to %s", cli.FormatBytes(int64(len(data))), path)
	return nil
}
