// Package app wires configuration, logging and the recording session into
// the voice-transcribe command line.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zackham/voice-transcribe/internal/config"
)

// daemonEnv marks the detached child so it records instead of toggling.
const daemonEnv = "VOICE_TRANSCRIBE_DAEMON"

type rootOptions struct {
	// daemonStop is registered before anything else runs in the detached
	// child, so a stop sent right after spawn is not lost.
	daemonStop chan os.Signal
	configPath string
	foreground bool
	flags      *config.FlagValues
	cfg        config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{daemonStop: daemonSignals()}
	cmd := &cobra.Command{
		Use:   "voice-transcribe",
		Short: "Toggle a background voice recording and copy its transcription",
		Long: `Run once to start recording in the background, run again to stop.
The recording is transcribed and the text is copied to the clipboard.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case opts.daemonStop != nil:
				return runDaemon(cmd.Context(), opts.cfg, opts.daemonStop)
			case opts.foreground:
				return runForeground(cmd.Context(), opts.cfg)
			default:
				return runToggle(opts.cfg, cmd.OutOrStdout())
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "JSON settings file (default "+config.DefaultConfigPath()+")")
	opts.flags = config.BindFlags(pf)
	cmd.Flags().BoolVar(&opts.foreground, "foreground", false, "record in this process until interrupted")

	cmd.AddCommand(
		newStatusCommand(opts),
		newDevicesCommand(opts),
		newFileCommand(opts),
		newInitConfigCommand(),
	)
	return cmd
}

// daemonSignals starts catching stop signals when running as the detached
// child, and returns nil otherwise.
func daemonSignals() chan os.Signal {
	if os.Getenv(daemonEnv) != "1" {
		return nil
	}
	return notifyStop()
}

func (o *rootOptions) load() error {
	cfg, err := config.Load(config.ResolvePath(o.configPath))
	if err != nil {
		return err
	}
	config.ApplyFlags(&cfg, o.flags)
	if err := config.InitCacheDir(&cfg); err != nil {
		return err
	}
	if err := config.Validate(&cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	o.cfg = cfg
	return nil
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}
