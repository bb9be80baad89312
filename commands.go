package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"whisgo/audio"
	"whisgo/doctor"
	"whisgo/shutdown"
)

var newAudioContext = audio.NewContext

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "whisgo",
		Short: "Record voice memos and transcribe them",
		Long: `whisgo records audio from a microphone, sends it to a Whisper
transcription service and keeps the last 20 transcripts.

Run without arguments for the interactive recorder.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: <data dir>/config.toml)")
	root.PersistentFlags().StringVar(&opts.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data", "", "data directory (overrides config and WHISGO_DATA_DIR)")

	root.AddCommand(
		newRecordCmd(opts),
		newDevicesCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
		newSoundsCmd(opts),
		newDoctorCmd(opts),
	)
	return root
}

// withAudio opens the app and a synchronously connected audio backend.
func withAudio(opts *globalOptions, fn func(a *app) error) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	b := startBackend(newAudioContext, false)
	defer b.Close()
	actx, err := b.Wait(context.Background())
	if err != nil {
		return err
	}
	if err := a.attachAudio(actx); err != nil {
		return err
	}
	return fn(a)
}

func newRecordCmd(opts *globalOptions) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one memo, transcribe it and print the text",
		Long: `Records from the selected microphone until Enter is pressed (or
--duration elapses), then transcribes and prints the result.

Examples:
  whisgo record
  whisgo record --duration 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := shutdown.Context(cmd.Context())
			defer stop()
			return withAudio(opts, func(a *app) error {
				return runRecord(ctx, a, duration, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop automatically after this long")
	return cmd
}

func runRecord(ctx context.Context, a *app, duration time.Duration, in io.Reader, out, errOut io.Writer) error {
	a.warm(ctx)
	if err := a.pipeline.StartRecording(ctx); err != nil {
		return errors.New(userMessage(err))
	}
	if duration > 0 {
		fmt.Fprintf(errOut, "● Recording on %s for %s...\n", a.rec.DeviceName(), duration)
	} else {
		fmt.Fprintf(errOut, "● Recording on %s, press Enter to stop...\n", a.rec.DeviceName())
	}

	enter := make(chan struct{})
	if duration <= 0 {
		go func() {
			bufio.NewReader(in).ReadString('\n')
			close(enter)
		}()
	}
	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}
	done := make(chan struct{})
	stopWatching := sync.OnceFunc(func() { close(done) })
	defer stopWatching()
	failed := watchFailure(done, 50*time.Millisecond, a.rec.Err)

	select {
	case <-enter:
	case <-timeout:
	case <-failed:
		return errors.New(userMessage(a.rec.Err()))
	case <-ctx.Done():
		a.pipeline.Cancel()
		return ctx.Err()
	}
	stopWatching()

	fmt.Fprintln(errOut, "Transcribing...")
	res, err := a.pipeline.StopAndTranscribe(ctx)
	if err != nil {
		return errors.New(userMessage(err))
	}
	switch {
	case res.Skipped:
		fmt.Fprintln(errOut, "Recording too short, nothing transcribed.")
	case res.NoSpeech:
		fmt.Fprintln(errOut, "(no speech detected)")
	default:
		fmt.Fprintln(out, res.Entry.Text)
		if res.Copied {
			fmt.Fprintln(errOut, "✓ copied to clipboard")
		}
	}
	return nil
}

// watchFailure polls check every interval until done is closed. The
// returned channel is closed the first time check reports an error.
func watchFailure(done <-chan struct{}, interval time.Duration, check func() error) <-chan struct{} {
	failed := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if check() != nil {
					close(failed)
					return
				}
			case <-done:
				return
			}
		}
	}()
	return failed
}

func newDevicesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List microphones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAudio(opts, func(a *app) error {
				devices, err := a.registry.List()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(devices) == 0 {
					fmt.Fprintln(out, "No capture devices found, the system default will be used.")
					return nil
				}
				selected := a.registry.SelectedID()
				for _, d := range devices {
					mark := " "
					if d.ID == selected {
						mark = "*"
					}
					bt := ""
					if audio.IsBluetooth(d.Name) {
						bt = "  [lower audio quality]"
					}
					fmt.Fprintf(out, "%s %s\t%s%s\n", mark, d.ID, d.Name, bt)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "select [id]",
		Short: "Choose the microphone to record from",
		Long: `Selects a microphone by id, or opens an interactive picker when no id
is given. The choice is remembered.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAudio(opts, func(a *app) error {
				if len(args) == 1 {
					if err := a.registry.Select(args[0]); err != nil {
						return err
					}
					d, _ := a.registry.Lookup(args[0])
					fmt.Fprintf(cmd.OutOrStdout(), "Using %s\n", d.Name)
					return nil
				}
				d, err := a.registry.SelectInteractive(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Using %s\n", d.Name)
				return nil
			})
		},
	})
	return cmd
}

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	var seconds time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check microphone, credential, service and clipboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			code := doctor.Run(cmd.Context(), doctor.Env{
				OpenAudio:   newAudioContext,
				KV:          a.kv,
				Transcriber: a.client,
				Out:         cmd.OutOrStdout(),
				Record:      seconds,
			})
			if code != 0 {
				return errors.New("some checks failed")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&seconds, "record", 3*time.Second, "length of the test recording")
	return cmd
}
