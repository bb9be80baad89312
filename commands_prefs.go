package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"whisgo/clipboard"
	"whisgo/history"
	"whisgo/sound"
	"whisgo/transcriber"
)

func withApp(opts *globalOptions, fn func(a *app) error) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transcriptions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				entries := a.history.Entries()
				out := cmd.OutOrStdout()
				if asJSON {
					if entries == nil {
						entries = []history.Transcription{}
					}
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, "No transcriptions yet")
					return nil
				}
				for i, e := range entries {
					ts := e.Timestamp
					if t := e.Time(); !t.IsZero() {
						ts = t.Local().Format("2006-01-02 15:04")
					}
					fmt.Fprintf(out, "%2d  %s  %s\n", i+1, ts, e.Text)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all transcriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				a.history.Clear()
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "copy [n]",
		Short: "Copy a transcription to the clipboard (default: the latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid entry number %q", args[0])
				}
				n = v
			}
			return withApp(opts, func(a *app) error {
				e, err := a.history.Get(n)
				if err != nil {
					return err
				}
				if err := clipboard.Copy(e.Text); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ copied")
				return nil
			})
		},
	})
	return cmd
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the API key, model and settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-key <key>",
		Short: "Store the Groq API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := transcriber.SaveAPIKey(a.kv, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key saved")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-model <model>",
		Short: "Choose the transcription model",
		Long: `Sets the model sent with each request.

Examples:
  whisgo config set-model whisper-large-v3-turbo
  whisgo config set-model whisper-large-v3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := transcriber.SaveModel(a.kv, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Model set to %s\n", strings.TrimSpace(args[0]))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				s := transcriber.LoadSettings(a.kv)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "api key:        %s\n", s.MaskedKey())
				fmt.Fprintf(out, "model:          %s\n", s.Model)
				fmt.Fprintf(out, "endpoint:       %s\n", a.cfg.Endpoint)
				fmt.Fprintf(out, "language:       %s\n", a.cfg.Language)
				fmt.Fprintf(out, "clipboard:      %t\n", a.cfg.CopyToClipboard)
				fmt.Fprintf(out, "min recording:  %s\n", a.cfg.MinRecording().Round(time.Millisecond))
				fmt.Fprintf(out, "data dir:       %s\n", a.cfg.DataDir)
				return nil
			})
		},
	})
	return cmd
}

func newSoundsCmd(opts *globalOptions) *cobra.Command {
	printSounds := func(cmd *cobra.Command, a *app) {
		out := cmd.OutOrStdout()
		state := "enabled"
		if !a.sounds.Enabled() {
			state = "disabled"
		}
		fmt.Fprintf(out, "playback: %s\n", state)
		for _, slot := range []sound.Slot{sound.Start, sound.Stop} {
			e := a.sounds.Effect(slot)
			tag := ""
			if e.IsDefault {
				tag = " (default)"
			}
			fmt.Fprintf(out, "%-5s  %s%s\n", slot, e.Name, tag)
		}
	}

	cmd := &cobra.Command{
		Use:   "sounds",
		Short: "Show or change the start/stop cues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				printSounds(cmd, a)
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <start|stop> <file.wav>",
		Short: "Use a WAV file as a cue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := sound.ParseSlot(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				e, err := a.sounds.Set(slot, args[1])
				if err != nil {
					return fmt.Errorf("could not use %s: %w", args[1], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s sound set to %s\n", slot, e.Name)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default cues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				a.sounds.Reset()
				printSounds(cmd, a)
				return nil
			})
		},
	})
	for _, enable := range []bool{true, false} {
		use := "enable"
		if !enable {
			use = "disable"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: strings.ToUpper(use[:1]) + use[1:] + " cue playback",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(opts, func(a *app) error {
					a.sounds.SetEnabled(enable)
					printSounds(cmd, a)
					return nil
				})
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "play <start|stop>",
		Short: "Play a cue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := sound.ParseSlot(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				a.sounds.Play(slot)
				a.sounds.Wait()
				return nil
			})
		},
	})
	return cmd
}
